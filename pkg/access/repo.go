package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	CreateAccount(ctx context.Context, name, email, passwordHash, uuid string, roles []string) (Account, error)
	GetAccountByUUID(ctx context.Context, uuid string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]Account, int64, error)
	SetRoles(ctx context.Context, uuid string, roles []string) (Account, error)
	// Auth helper: returns uuid and password hash for login.
	GetAccountAuthByEmail(ctx context.Context, email string) (string, string, error)
}

type postgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &postgresAccountRepository{pool: pool}
}

func (r *postgresAccountRepository) CreateAccount(ctx context.Context, name, email, passwordHash, uuid string, roles []string) (Account, error) {
	query := `INSERT INTO accounts (name, email, password_hash, uuid, roles, created_at)
              VALUES ($1, $2, $3, $4, $5, NOW())
              RETURNING id, uuid, name, email, roles, created_at`
	row := r.pool.QueryRow(ctx, query, name, email, passwordHash, uuid, roles)

	var a Account
	if err := row.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.Roles, &a.CreatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *postgresAccountRepository) GetAccountByUUID(ctx context.Context, uuid string) (Account, error) {
	query := `SELECT id, uuid, name, email, roles, created_at
              FROM accounts
              WHERE uuid = $1 AND is_deleted = false`
	row := r.pool.QueryRow(ctx, query, uuid)

	var a Account
	if err := row.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.Roles, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *postgresAccountRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	query := `SELECT id, uuid, name, email, roles, created_at
              FROM accounts
              WHERE email = $1 AND is_deleted = false`
	row := r.pool.QueryRow(ctx, query, email)

	var a Account
	if err := row.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.Roles, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *postgresAccountRepository) ListAccounts(ctx context.Context, limit, offset int) ([]Account, int64, error) {
	query := `SELECT id, uuid, name, email, roles, created_at
              FROM accounts
              WHERE is_deleted = false
              ORDER BY id
              LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]Account, 0)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.Roles, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts WHERE is_deleted = false").Scan(&total); err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *postgresAccountRepository) SetRoles(ctx context.Context, uuid string, roles []string) (Account, error) {
	query := `UPDATE accounts
              SET roles = $1
              WHERE uuid = $2 AND is_deleted = false
              RETURNING id, uuid, name, email, roles, created_at`
	row := r.pool.QueryRow(ctx, query, roles, uuid)

	var a Account
	if err := row.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.Roles, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *postgresAccountRepository) GetAccountAuthByEmail(ctx context.Context, email string) (string, string, error) {
	query := `SELECT uuid, password_hash FROM accounts WHERE email = $1 AND is_deleted = false`
	row := r.pool.QueryRow(ctx, query, email)

	var uuid, hash string
	if err := row.Scan(&uuid, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrAccountNotFound
		}
		return "", "", err
	}
	return uuid, hash, nil
}
