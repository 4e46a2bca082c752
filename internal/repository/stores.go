package repository

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores groups the repositories of one backend.
type Stores struct {
	Tickets    TicketRepository
	Users      UserRepository
	Categories CategoryRepository
	Cards      CardSequence
}

// NewPostgresStores wires every repository to a pgx pool.
func NewPostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Tickets:    NewTicketRepository(pool),
		Users:      NewUserRepository(pool),
		Categories: NewCategoryRepository(pool),
		Cards:      NewPostgresCardSequence(pool),
	}
}

// NewSQLiteStores wires every repository to an embedded database.
func NewSQLiteStores(db *sql.DB) Stores {
	return Stores{
		Tickets:    NewSQLiteTicketRepository(db),
		Users:      NewSQLiteUserRepository(db),
		Categories: NewSQLiteCategoryRepository(db),
		Cards:      NewSQLiteCardSequence(db),
	}
}
