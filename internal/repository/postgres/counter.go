package postgres

import (
	"context"
	"database/sql"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
)

type counterRepository struct {
	db *sql.DB
}

func NewCounterRepository(db *sql.DB) repository.CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Create(ctx context.Context, c *domain.Counter) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	query := `INSERT INTO counters (id, counter_code, name, address, max_staff, admin_user_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.CounterCode, c.Name, c.Address, c.MaxStaff, c.AdminUserID, c.IsActive, now, now)
	if _, ok := uniqueConstraint(err); ok {
		return domain.Conflict("counter code %s already exists", c.CounterCode)
	}
	return err
}

func (r *counterRepository) GetActiveByID(ctx context.Context, id uuid.UUID) (*domain.Counter, error) {
	query := `SELECT id, counter_code, name, COALESCE(address, ''), max_staff, admin_user_id, is_active, created_at, updated_at
	          FROM counters WHERE id = $1 AND is_active = true`
	var (
		c     domain.Counter
		admin uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.CounterCode, &c.Name, &c.Address, &c.MaxStaff, &admin, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "counter %s not found or inactive", id)
	}
	c.AdminUserID = uuidPtr(admin)
	return &c, nil
}

func (r *counterRepository) ListActiveStaff(ctx context.Context, counterID uuid.UUID) ([]domain.CounterStaff, error) {
	query := `SELECT id, counter_id, user_id, is_active, created_at, updated_at
	          FROM counter_staff WHERE counter_id = $1 AND is_active = true ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, counterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []domain.CounterStaff
	for rows.Next() {
		var s domain.CounterStaff
		if err := rows.Scan(&s.ID, &s.CounterID, &s.UserID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

func (r *counterRepository) GetStaff(ctx context.Context, counterID, userID uuid.UUID) (*domain.CounterStaff, error) {
	query := `SELECT id, counter_id, user_id, is_active, created_at, updated_at
	          FROM counter_staff WHERE counter_id = $1 AND user_id = $2`
	var s domain.CounterStaff
	err := r.db.QueryRowContext(ctx, query, counterID, userID).Scan(&s.ID, &s.CounterID, &s.UserID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "staff %s is not a member of counter %s", userID, counterID)
	}
	return &s, nil
}

func (r *counterRepository) SaveStaff(ctx context.Context, s *domain.CounterStaff) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	query := `INSERT INTO counter_staff (id, counter_id, user_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (counter_id, user_id) DO UPDATE SET is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	          RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, s.ID, s.CounterID, s.UserID, s.IsActive, s.CreatedAt, s.UpdatedAt).Scan(&s.ID, &s.CreatedAt)
}
