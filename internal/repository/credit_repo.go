package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// ErrInsufficientCredits is returned when an insert would take an account's
// credit sum below zero. The database trigger is the source of truth; this
// error is the translated form of its check_violation.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditRepository defines the interface for credit ledger operations.
// The ledger is append-only; balances are sums over entries.
type CreditRepository interface {
	GetTotalCreditsByAccount(ctx context.Context, account string) (int64, error)
	GetAllByAccount(ctx context.Context, account string) ([]*models.Credit, error)
	Insert(ctx context.Context, credit *models.Credit) error
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new credit repository.
func NewCreditRepository(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

// GetTotalCreditsByAccount returns the account's current balance.
// Accounts without entries have balance 0.
func (r *creditRepo) GetTotalCreditsByAccount(ctx context.Context, account string) (int64, error) {
	var total *int64
	err := r.pool.QueryRow(ctx,
		`SELECT SUM(credits)::INT8 FROM credits WHERE account = $1`, account,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// GetAllByAccount returns the account's ledger entries, oldest first.
func (r *creditRepo) GetAllByAccount(ctx context.Context, account string) ([]*models.Credit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account, credits, description, date FROM credits WHERE account = $1 ORDER BY date ASC`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []*models.Credit
	for rows.Next() {
		var c models.Credit
		if err := rows.Scan(&c.Account, &c.Credits, &c.Description, &c.Date); err != nil {
			return nil, err
		}
		credits = append(credits, &c)
	}
	return credits, rows.Err()
}

// Insert appends a ledger entry. Returns ErrInsufficientCredits when the
// trigger vetoes a debit that would make the account's sum negative.
func (r *creditRepo) Insert(ctx context.Context, credit *models.Credit) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO credits (account, credits, description, date) VALUES ($1, $2, $3, $4)`,
		credit.Account,
		credit.Credits,
		credit.Description,
		credit.Date,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return ErrInsufficientCredits
		}
		return err
	}
	return nil
}

// Compile-time check to ensure creditRepo implements CreditRepository.
var _ CreditRepository = (*creditRepo)(nil)
