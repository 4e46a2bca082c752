package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// CategoryRepository manages the department/category taxonomy.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	ListByDepartment(ctx context.Context, department string) ([]domain.Category, error)
	Get(ctx context.Context, department, mainCategory string) (*domain.Category, error)
	Create(ctx context.Context, category *domain.Category) error
	Upsert(ctx context.Context, category *domain.Category) error
	UpdateSubCategories(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, department, mainCategory string) error
}

const categoryColumns = `id, department, main_category, sub_categories, created_at, updated_at`

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds the Postgres repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (department, main_category, sub_categories)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		category.Department,
		category.MainCategory,
		subCategoriesOrEmpty(category.SubCategories),
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	return mapPostgresError(err)
}

func (r *categoryRepository) Upsert(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (department, main_category, sub_categories)
        VALUES ($1,$2,$3)
        ON CONFLICT (department, main_category)
        DO UPDATE SET sub_categories = EXCLUDED.sub_categories, updated_at = NOW()
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		category.Department,
		category.MainCategory,
		subCategoriesOrEmpty(category.SubCategories),
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	return mapPostgresError(err)
}

func (r *categoryRepository) UpdateSubCategories(ctx context.Context, category *domain.Category) error {
	const query = `
        UPDATE categories SET sub_categories=$1, updated_at=NOW()
        WHERE department=$2 AND main_category=$3
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		subCategoriesOrEmpty(category.SubCategories),
		category.Department,
		category.MainCategory,
	).Scan(&category.UpdatedAt)
	return mapPostgresError(err)
}

func (r *categoryRepository) Delete(ctx context.Context, department, mainCategory string) error {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM categories WHERE department=$1 AND main_category=$2`, department, mainCategory)
	if err != nil {
		return mapPostgresError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, department, mainCategory string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE department=$1 AND main_category=$2`
	var c domain.Category
	if err := r.pool.QueryRow(ctx, query, department, mainCategory).Scan(
		&c.ID, &c.Department, &c.MainCategory, &c.SubCategories, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, mapPostgresError(err)
	}
	return &c, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY department, main_category`
	return r.list(ctx, query)
}

func (r *categoryRepository) ListByDepartment(ctx context.Context, department string) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE department=$1 ORDER BY main_category`
	return r.list(ctx, query, department)
}

func (r *categoryRepository) list(ctx context.Context, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Department, &c.MainCategory, &c.SubCategories, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

type sqliteCategoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCategoryRepository builds the embedded-database repository.
func NewSQLiteCategoryRepository(db *sql.DB) CategoryRepository {
	return &sqliteCategoryRepository{db: db, now: time.Now}
}

func (r *sqliteCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	return r.insert(ctx, category, `
        INSERT INTO categories (department, main_category, sub_categories, created_at, updated_at)
        VALUES (?,?,?,?,?)
        RETURNING id, created_at, updated_at`)
}

func (r *sqliteCategoryRepository) Upsert(ctx context.Context, category *domain.Category) error {
	return r.insert(ctx, category, `
        INSERT INTO categories (department, main_category, sub_categories, created_at, updated_at)
        VALUES (?,?,?,?,?)
        ON CONFLICT (department, main_category)
        DO UPDATE SET sub_categories = excluded.sub_categories, updated_at = excluded.updated_at
        RETURNING id, created_at, updated_at`)
}

func (r *sqliteCategoryRepository) insert(ctx context.Context, category *domain.Category, query string) error {
	subs, err := json.Marshal(subCategoriesOrEmpty(category.SubCategories))
	if err != nil {
		return fmt.Errorf("encode subcategories: %w", err)
	}
	now := formatTime(r.now())
	var createdAt, updatedAt string
	if err := r.db.QueryRowContext(ctx, query,
		category.Department, category.MainCategory, string(subs), now, now,
	).Scan(&category.ID, &createdAt, &updatedAt); err != nil {
		return mapSQLiteError(err)
	}
	if category.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	category.UpdatedAt, err = parseTime(updatedAt)
	return err
}

func (r *sqliteCategoryRepository) UpdateSubCategories(ctx context.Context, category *domain.Category) error {
	subs, err := json.Marshal(subCategoriesOrEmpty(category.SubCategories))
	if err != nil {
		return fmt.Errorf("encode subcategories: %w", err)
	}
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET sub_categories=?, updated_at=? WHERE department=? AND main_category=?`,
		string(subs), formatTime(now), category.Department, category.MainCategory)
	if err := requireAffected(res, err); err != nil {
		return err
	}
	category.UpdatedAt = now
	return nil
}

func (r *sqliteCategoryRepository) Delete(ctx context.Context, department, mainCategory string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE department=? AND main_category=?`, department, mainCategory)
	return requireAffected(res, err)
}

func (r *sqliteCategoryRepository) Get(ctx context.Context, department, mainCategory string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE department=? AND main_category=?`
	c, err := scanSQLiteCategory(r.db.QueryRowContext(ctx, query, department, mainCategory))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return c, nil
}

func (r *sqliteCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	return r.list(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY department, main_category`)
}

func (r *sqliteCategoryRepository) ListByDepartment(ctx context.Context, department string) ([]domain.Category, error) {
	return r.list(ctx, `SELECT `+categoryColumns+` FROM categories WHERE department=? ORDER BY main_category`, department)
}

func (r *sqliteCategoryRepository) list(ctx context.Context, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		c, err := scanSQLiteCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func scanSQLiteCategory(row rowScanner) (*domain.Category, error) {
	var (
		c                    domain.Category
		subs                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Department, &c.MainCategory, &subs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(subs), &c.SubCategories); err != nil {
		return nil, fmt.Errorf("category %s/%s: decode subcategories: %w", c.Department, c.MainCategory, err)
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func subCategoriesOrEmpty(subs []string) []string {
	if subs == nil {
		return []string{}
	}
	return subs
}
