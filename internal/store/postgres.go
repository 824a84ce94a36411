package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jchoi-dev/account-service/internal/models"
)

// PGConfig configures the Postgres pool.
type PGConfig struct {
	DSN          string
	MaxConns     int32
	MinConns     int32
	QueryTimeout time.Duration
}

// PG is the pgx-backed implementation of UserStore and ActivityStore.
type PG struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

var (
	_ UserStore     = (*PG)(nil)
	_ ActivityStore = (*PG)(nil)
)

// NewPG connects a pool and verifies it with a ping.
func NewPG(ctx context.Context, cfg PGConfig) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(hctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &PG{pool: pool, queryTimeout: timeout}, nil
}

// Close releases the pool.
func (p *PG) Close() {
	p.pool.Close()
}

// Pool exposes the underlying pool for migrations.
func (p *PG) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PG) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.queryTimeout)
}

const userColumns = `id, email, password_hash, name, nickname, phone, profile_image_url,
role, status, provider, refresh_token, last_login_at,
email_verified, email_verified_at, created_at, updated_at, deleted_at`

const (
	qUserInsert = `
INSERT INTO users (email, password_hash, name, nickname, phone, profile_image_url,
                   role, status, provider, email_verified, email_verified_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
        $7, $8, NULLIF($9, ''), $10, $11)
RETURNING id, created_at, updated_at;`

	qUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1;`

	qUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	qUserExistsByEmail = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1);`

	qUserExistsByNickname = `SELECT EXISTS (SELECT 1 FROM users WHERE nickname = $1);`

	qUserUpdate = `
UPDATE users
SET email             = $2,
    password_hash     = $3,
    name              = $4,
    nickname          = NULLIF($5, ''),
    phone             = NULLIF($6, ''),
    profile_image_url = NULLIF($7, ''),
    role              = $8,
    status            = $9,
    provider          = NULLIF($10, ''),
    refresh_token     = NULLIF($11, ''),
    last_login_at     = $12,
    email_verified    = $13,
    email_verified_at = $14,
    deleted_at        = $15,
    updated_at        = NOW()
WHERE id = $1
RETURNING updated_at;`

	qUserDelete = `DELETE FROM users WHERE id = $1;`

	qActivityInsert = `
INSERT INTO activities (user_id, kind, detail)
VALUES ($1, $2, $3)
RETURNING id, created_at;`

	qActivityByUser = `
SELECT id, user_id, kind, detail, created_at
FROM activities
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
)

func (p *PG) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.pool.QueryRow(ctx, qUserInsert,
		u.Email, u.PasswordHash, u.Name, u.Nickname, u.Phone, u.ProfileImageURL,
		string(u.Role), string(u.Status), string(u.Provider),
		u.EmailVerified, u.EmailVerifiedAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (p *PG) FindByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	return scanUser(p.pool.QueryRow(ctx, qUserByID, id))
}

func (p *PG) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	return scanUser(p.pool.QueryRow(ctx, qUserByEmail, email))
}

func (p *PG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := p.pool.QueryRow(ctx, qUserExistsByEmail, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists by email: %w", err)
	}
	return exists, nil
}

func (p *PG) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := p.pool.QueryRow(ctx, qUserExistsByNickname, nickname).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists by nickname: %w", err)
	}
	return exists, nil
}

func (p *PG) Update(ctx context.Context, u *models.User) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.pool.QueryRow(ctx, qUserUpdate,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Nickname, u.Phone, u.ProfileImageURL,
		string(u.Role), string(u.Status), string(u.Provider),
		u.RefreshToken, u.LastLoginAt,
		u.EmailVerified, u.EmailVerifiedAt, u.DeletedAt,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("user update: %w", err)
	}
	return nil
}

func (p *PG) Delete(ctx context.Context, id int64) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, qUserDelete, id)
	if err != nil {
		return fmt.Errorf("user delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) Record(ctx context.Context, a *models.Activity) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.pool.QueryRow(ctx, qActivityInsert, a.UserID, string(a.Kind), a.Detail).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity insert: %w", err)
	}
	return nil
}

func (p *PG) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Activity, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx, qActivityByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity list: %w", err)
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		var kind string
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity scan: %w", err)
		}
		a.Kind = models.ActivityKind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity rows: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var nickname, phone, image, provider, refreshToken *string
	var role, status string

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &nickname, &phone, &image,
		&role, &status, &provider, &refreshToken, &u.LastLoginAt,
		&u.EmailVerified, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user scan: %w", err)
	}

	u.Role = models.Role(role)
	u.Status = models.Status(status)
	if nickname != nil {
		u.Nickname = *nickname
	}
	if phone != nil {
		u.Phone = *phone
	}
	if image != nil {
		u.ProfileImageURL = *image
	}
	if provider != nil {
		u.Provider = models.Provider(*provider)
	}
	if refreshToken != nil {
		u.RefreshToken = *refreshToken
	}
	return &u, nil
}
