package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// TicketFilter narrows ticket listings and aggregates. A zero Limit returns every match.
type TicketFilter struct {
	OwnerID    *string
	Types      []domain.TicketType
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Department *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// GroupField names a ticket column GroupCount may bucket by.
type GroupField string

const (
	GroupByType     GroupField = "type"
	GroupByStatus   GroupField = "status"
	GroupByRating   GroupField = "rating"
	GroupByCategory GroupField = "category"
)

var groupColumns = map[GroupField]string{
	GroupByType:     "t.type",
	GroupByStatus:   "t.status",
	GroupByRating:   "t.rating",
	GroupByCategory: "t.category",
}

// GroupCount is one bucket of a grouped count. Key is the column value as text.
type GroupCount struct {
	Key   string
	Count int64
}

func groupColumn(field GroupField) (string, error) {
	col, ok := groupColumns[field]
	if !ok {
		return "", fmt.Errorf("unsupported group field %q", field)
	}
	return col, nil
}

// whereBuilder accumulates clauses and positional args for one dialect.
type whereBuilder struct {
	placeholder func(n int) string
	clauses     []string
	args        []any
}

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func sqlitePlaceholder(int) string { return "?" }

func newWhereBuilder(placeholder func(n int) string) *whereBuilder {
	return &whereBuilder{placeholder: placeholder, clauses: []string{"1=1"}}
}

func (w *whereBuilder) add(format string, values ...any) {
	marks := make([]any, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		marks[i] = w.placeholder(len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf(format, marks...))
}

func (w *whereBuilder) addIn(column string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		marks[i] = w.placeholder(len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ",")))
}

func (w *whereBuilder) addRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) sql() string {
	return strings.Join(w.clauses, " AND ")
}

func (w *whereBuilder) applyTicketFilter(filter TicketFilter) {
	if filter.OwnerID != nil {
		w.add("t.owner_id = %s", *filter.OwnerID)
	}
	w.addIn("t.type", stringsOf(filter.Types))
	w.addIn("t.status", stringsOf(filter.Statuses))
	w.addIn("t.priority", stringsOf(filter.Priorities))
	if filter.Department != nil {
		w.add("t.department = %s", *filter.Department)
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		w.add("LOWER(t.content) LIKE %s", search)
	}
}

func pagingClause(filter TicketFilter) string {
	if filter.Limit <= 0 {
		return ""
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
