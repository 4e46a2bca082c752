package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/feedback-service/internal/domain"
)

const liteTicketColumns = `t.id, t.card_id, t.type, t.content, t.department, t.category, t.rating,
        t.status, t.priority, t.assigned_to, t.is_anonymous, t.requires_follow_up, t.attachments,
        t.chat_messages, t.admin_response, t.resolved_at, t.owner_id, u.email, t.created_at, t.updated_at`

const liteTicketFrom = `FROM tickets t JOIN users u ON u.id = t.owner_id`

type sqliteTicketRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTicketRepository instantiates the embedded-database repository.
func NewSQLiteTicketRepository(db *sql.DB) TicketRepository {
	return &sqliteTicketRepository{db: db, now: time.Now}
}

func (r *sqliteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (card_id, type, content, department, category, rating, status, priority,
            assigned_to, is_anonymous, requires_follow_up, attachments, chat_messages, admin_response,
            resolved_at, owner_id, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	attachments, err := json.Marshal(attachmentsOrEmpty(ticket.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	chat, err := json.Marshal(chatOrEmpty(ticket))
	if err != nil {
		return fmt.Errorf("encode chat messages: %w", err)
	}
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		ticket.CardID,
		string(ticket.Type()),
		ticket.Content,
		ticket.Department,
		ticket.Category,
		ratingValue(ticket),
		string(ticket.Status),
		string(ticket.Priority),
		ticket.AssignedTo,
		ticket.IsAnonymous,
		ticket.RequiresFollowUp,
		string(attachments),
		string(chat),
		ticket.AdminResponse,
		formatNullableTime(ticket.ResolvedAt),
		ticket.OwnerID,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ticket.ID = id
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

func (r *sqliteTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET department=?, category=?, status=?, priority=?, assigned_to=?,
            requires_follow_up=?, attachments=?, admin_response=?, resolved_at=?, updated_at=?
        WHERE id=?`
	attachments, err := json.Marshal(attachmentsOrEmpty(ticket.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		ticket.Department,
		ticket.Category,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.AssignedTo,
		ticket.RequiresFollowUp,
		string(attachments),
		ticket.AdminResponse,
		formatNullableTime(ticket.ResolvedAt),
		formatTime(now),
		ticket.ID,
	)
	if err := requireAffected(res, err); err != nil {
		return err
	}
	ticket.UpdatedAt = now
	return nil
}

func (r *sqliteTicketRepository) AppendChatMessage(ctx context.Context, id int64, msg domain.ChatMessage) error {
	const query = `
        UPDATE tickets SET chat_messages = json_insert(chat_messages, '$[#]', json(?)), updated_at=?
        WHERE id=? AND type='request'`
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, string(encoded), formatTime(r.now().UTC()), id)
	return requireAffected(res, err)
}

func (r *sqliteTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + liteTicketColumns + ` ` + liteTicketFrom + ` WHERE t.id=?`
	return r.fetchSingle(ctx, query, id)
}

func (r *sqliteTicketRepository) GetByCardID(ctx context.Context, cardID string, ownerID *string) (*domain.Ticket, error) {
	if ownerID != nil {
		query := `SELECT ` + liteTicketColumns + ` ` + liteTicketFrom + ` WHERE t.card_id=? AND t.owner_id=?`
		return r.fetchSingle(ctx, query, cardID, *ownerID)
	}
	query := `SELECT ` + liteTicketColumns + ` ` + liteTicketFrom + ` WHERE t.card_id=?`
	return r.fetchSingle(ctx, query, cardID)
}

func (r *sqliteTicketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanSQLiteTicket(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return ticket, nil
}

func (r *sqliteTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where := newWhereBuilder(sqlitePlaceholder)
	where.applyTicketFilter(filter)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.id DESC%s`,
		liteTicketColumns, liteTicketFrom, where.sql(), pagingClause(filter))

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *sqliteTicketRepository) LatestCardID(ctx context.Context) (string, error) {
	const query = `SELECT card_id FROM tickets ORDER BY id DESC LIMIT 1`
	var cardID string
	if err := r.db.QueryRowContext(ctx, query).Scan(&cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return cardID, nil
}

func (r *sqliteTicketRepository) Count(ctx context.Context, filter TicketFilter) (int64, error) {
	where := newWhereBuilder(sqlitePlaceholder)
	where.applyTicketFilter(filter)
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where.sql(), where.args...).Scan(&count)
	return count, err
}

func (r *sqliteTicketRepository) GroupCount(ctx context.Context, field GroupField, filter TicketFilter, limit int) ([]GroupCount, error) {
	column, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	where := newWhereBuilder(sqlitePlaceholder)
	where.applyTicketFilter(filter)
	where.addRaw(column + " IS NOT NULL")
	query := fmt.Sprintf(`SELECT CAST(%[1]s AS TEXT) AS bucket, COUNT(*) AS total FROM tickets t
        WHERE %[2]s GROUP BY %[1]s ORDER BY total DESC, bucket ASC`, column, where.sql())
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []GroupCount{}
	for rows.Next() {
		var gc GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, err
		}
		result = append(result, gc)
	}
	return result, rows.Err()
}

func (r *sqliteTicketRepository) AverageRating(ctx context.Context, filter TicketFilter) (float64, error) {
	where := newWhereBuilder(sqlitePlaceholder)
	where.applyTicketFilter(filter)
	where.addRaw("t.rating IS NOT NULL")
	var avg float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(t.rating), 0.0) FROM tickets t WHERE `+where.sql(), where.args...).Scan(&avg)
	return avg, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket         domain.Ticket
		ticketType     string
		status         string
		priority       string
		rating         sql.NullInt32
		department     sql.NullString
		category       sql.NullString
		assignedTo     sql.NullString
		adminResponse  sql.NullString
		resolvedAt     sql.NullString
		attachmentsRaw string
		chatRaw        string
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CardID,
		&ticketType,
		&ticket.Content,
		&department,
		&category,
		&rating,
		&status,
		&priority,
		&assignedTo,
		&ticket.IsAnonymous,
		&ticket.RequiresFollowUp,
		&attachmentsRaw,
		&chatRaw,
		&adminResponse,
		&resolvedAt,
		&ticket.OwnerID,
		&ticket.OwnerEmail,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	ticket.Status = domain.TicketStatus(status)
	ticket.Priority = domain.TicketPriority(priority)
	ticket.Department = nullableString(department)
	ticket.Category = nullableString(category)
	ticket.AssignedTo = nullableString(assignedTo)
	ticket.AdminResponse = nullableString(adminResponse)

	var err error
	if ticket.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ticket.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		ts, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		ticket.ResolvedAt = &ts
	}
	if err := json.Unmarshal([]byte(attachmentsRaw), &ticket.Attachments); err != nil {
		return nil, fmt.Errorf("ticket %s: decode attachments: %w", ticket.CardID, err)
	}

	var ratingPtr *int32
	if rating.Valid {
		ratingPtr = &rating.Int32
	}
	if err := attachVariant(&ticket, domain.TicketType(ticketType), ratingPtr, []byte(chatRaw)); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
