package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
//
// Update writes the mutable scalar fields of a ticket. The chat thread is
// only ever extended through AppendChatMessage, which appends in a single
// statement so concurrent appends are never lost.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	AppendChatMessage(ctx context.Context, id int64, msg domain.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByCardID(ctx context.Context, cardID string, ownerID *string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	LatestCardID(ctx context.Context) (string, error)
	Count(ctx context.Context, filter TicketFilter) (int64, error)
	GroupCount(ctx context.Context, field GroupField, filter TicketFilter, limit int) ([]GroupCount, error)
	AverageRating(ctx context.Context, filter TicketFilter) (float64, error)
}

const pgTicketColumns = `t.id, t.card_id, t.type, t.content, t.department, t.category, t.rating,
        t.status, t.priority, t.assigned_to, t.is_anonymous, t.requires_follow_up, t.attachments,
        t.chat_messages, t.admin_response, t.resolved_at, t.owner_id::text, u.email, t.created_at, t.updated_at`

const pgTicketFrom = `FROM tickets t JOIN users u ON u.id = t.owner_id`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (card_id, type, content, department, category, rating, status, priority,
            assigned_to, is_anonymous, requires_follow_up, attachments, chat_messages, admin_response,
            resolved_at, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, created_at, updated_at`
	chat, err := json.Marshal(chatOrEmpty(ticket))
	if err != nil {
		return fmt.Errorf("encode chat messages: %w", err)
	}
	err = r.pool.QueryRow(ctx, query,
		ticket.CardID,
		string(ticket.Type()),
		ticket.Content,
		ticket.Department,
		ticket.Category,
		ratingValue(ticket),
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.IsAnonymous,
		ticket.RequiresFollowUp,
		attachmentsOrEmpty(ticket.Attachments),
		string(chat),
		ticket.AdminResponse,
		ticket.ResolvedAt,
		ticket.OwnerID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return mapPostgresError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET department=$1, category=$2, status=$3, priority=$4, assigned_to=$5,
            requires_follow_up=$6, attachments=$7, admin_response=$8, resolved_at=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Department,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.RequiresFollowUp,
		attachmentsOrEmpty(ticket.Attachments),
		ticket.AdminResponse,
		ticket.ResolvedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return mapPostgresError(err)
}

func (r *ticketRepository) AppendChatMessage(ctx context.Context, id int64, msg domain.ChatMessage) error {
	const query = `
        UPDATE tickets SET chat_messages = chat_messages || jsonb_build_array($1::jsonb), updated_at=NOW()
        WHERE id=$2 AND type='request'`
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, query, string(encoded), id)
	if err != nil {
		return mapPostgresError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + pgTicketColumns + ` ` + pgTicketFrom + ` WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByCardID(ctx context.Context, cardID string, ownerID *string) (*domain.Ticket, error) {
	if ownerID != nil {
		query := `SELECT ` + pgTicketColumns + ` ` + pgTicketFrom + ` WHERE t.card_id=$1 AND t.owner_id=$2`
		return r.fetchSingle(ctx, query, cardID, *ownerID)
	}
	query := `SELECT ` + pgTicketColumns + ` ` + pgTicketFrom + ` WHERE t.card_id=$1`
	return r.fetchSingle(ctx, query, cardID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanPostgresTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where := newWhereBuilder(postgresPlaceholder)
	where.applyTicketFilter(filter)
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.id DESC%s`,
		pgTicketColumns, pgTicketFrom, where.sql(), pagingClause(filter))

	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanPostgresTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) LatestCardID(ctx context.Context) (string, error) {
	const query = `SELECT card_id FROM tickets WHERE card_id IS NOT NULL ORDER BY id DESC LIMIT 1`
	var cardID string
	if err := r.pool.QueryRow(ctx, query).Scan(&cardID); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return cardID, nil
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int64, error) {
	where := newWhereBuilder(postgresPlaceholder)
	where.applyTicketFilter(filter)
	query := `SELECT COUNT(*) FROM tickets t WHERE ` + where.sql()
	var count int64
	err := r.pool.QueryRow(ctx, query, where.args...).Scan(&count)
	return count, err
}

func (r *ticketRepository) GroupCount(ctx context.Context, field GroupField, filter TicketFilter, limit int) ([]GroupCount, error) {
	column, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	where := newWhereBuilder(postgresPlaceholder)
	where.applyTicketFilter(filter)
	where.addRaw(column + " IS NOT NULL")
	query := fmt.Sprintf(`SELECT CAST(%[1]s AS TEXT) AS bucket, COUNT(*) AS total FROM tickets t
        WHERE %[2]s GROUP BY %[1]s ORDER BY total DESC, bucket ASC`, column, where.sql())
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query, where.args...)
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

func (r *ticketRepository) AverageRating(ctx context.Context, filter TicketFilter) (float64, error) {
	where := newWhereBuilder(postgresPlaceholder)
	where.applyTicketFilter(filter)
	where.addRaw("t.rating IS NOT NULL")
	query := `SELECT COALESCE(AVG(t.rating)::float8, 0) FROM tickets t WHERE ` + where.sql()
	var avg float64
	err := r.pool.QueryRow(ctx, query, where.args...).Scan(&avg)
	return avg, err
}

func scanPostgresTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		ticketType string
		rating     *int32
		chatRaw    []byte
		resolvedAt *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CardID,
		&ticketType,
		&ticket.Content,
		&ticket.Department,
		&ticket.Category,
		&rating,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.IsAnonymous,
		&ticket.RequiresFollowUp,
		&ticket.Attachments,
		&chatRaw,
		&ticket.AdminResponse,
		&resolvedAt,
		&ticket.OwnerID,
		&ticket.OwnerEmail,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.ResolvedAt = resolvedAt
	if err := attachVariant(&ticket, domain.TicketType(ticketType), rating, chatRaw); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// attachVariant rebuilds the feedback/request variant from stored columns.
func attachVariant(ticket *domain.Ticket, ticketType domain.TicketType, rating *int32, chatRaw []byte) error {
	if ticket.Attachments == nil {
		ticket.Attachments = []string{}
	}
	switch ticketType {
	case domain.TicketTypeFeedback:
		if rating == nil {
			return fmt.Errorf("ticket %s: feedback without rating", ticket.CardID)
		}
		ticket.Feedback = &domain.FeedbackDetails{Rating: domain.Rating(*rating)}
	case domain.TicketTypeRequest:
		chat := []domain.ChatMessage{}
		if len(chatRaw) > 0 {
			if err := json.Unmarshal(chatRaw, &chat); err != nil {
				return fmt.Errorf("ticket %s: decode chat messages: %w", ticket.CardID, err)
			}
		}
		ticket.Request = &domain.RequestDetails{Chat: chat}
	default:
		return fmt.Errorf("ticket %s: unknown type %q", ticket.CardID, ticketType)
	}
	return nil
}

func ratingValue(ticket *domain.Ticket) *int32 {
	if r := ticket.Rating(); r != nil {
		v := int32(*r)
		return &v
	}
	return nil
}

func chatOrEmpty(ticket *domain.Ticket) []domain.ChatMessage {
	if chat := ticket.ChatMessages(); chat != nil {
		return chat
	}
	return []domain.ChatMessage{}
}

func attachmentsOrEmpty(paths []string) []string {
	if paths == nil {
		return []string{}
	}
	return paths
}
