package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// WaitlistRepository defines the interface for waitlist signups.
type WaitlistRepository interface {
	GetAll(ctx context.Context) ([]*models.WaitlistEntry, error)
	GetByAccount(ctx context.Context, account string) (*models.WaitlistEntry, error)
	GetByIP(ctx context.Context, ip string) (*models.WaitlistEntry, error)
	Insert(ctx context.Context, entry *models.WaitlistEntry) error
}

type waitlistRepo struct {
	pool *pgxpool.Pool
}

// NewWaitlistRepository creates a new waitlist repository.
func NewWaitlistRepository(pool *pgxpool.Pool) WaitlistRepository {
	return &waitlistRepo{pool: pool}
}

const waitlistColumns = `id, account, ip, date`

func scanWaitlistEntry(row pgx.Row) (*models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	err := row.Scan(&e.ID, &e.Account, &e.IP, &e.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAll returns every signup in order of arrival.
func (r *waitlistRepo) GetAll(ctx context.Context) ([]*models.WaitlistEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+waitlistColumns+` FROM waitlist ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *waitlistRepo) GetByAccount(ctx context.Context, account string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE account = $1`
	return scanWaitlistEntry(r.pool.QueryRow(ctx, query, account))
}

func (r *waitlistRepo) GetByIP(ctx context.Context, ip string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE ip = $1`
	return scanWaitlistEntry(r.pool.QueryRow(ctx, query, ip))
}

// Insert adds a signup, assigning its serial id.
func (r *waitlistRepo) Insert(ctx context.Context, entry *models.WaitlistEntry) error {
	query := `INSERT INTO waitlist (account, ip, date) VALUES ($1, $2, $3) RETURNING id`
	return r.pool.QueryRow(ctx, query, entry.Account, entry.IP, entry.Date).Scan(&entry.ID)
}

// Compile-time check to ensure waitlistRepo implements WaitlistRepository.
var _ WaitlistRepository = (*waitlistRepo)(nil)
