package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// PromoCodeRepository defines the interface for promo code operations.
type PromoCodeRepository interface {
	GetUnredeemedByCode(ctx context.Context, code string) (*models.PromoCode, error)
	Insert(ctx context.Context, promo *models.PromoCode) error
	// Redeem marks the code as redeemed by the account. Returns false when the
	// code does not exist or was already claimed; the check and the write are
	// a single statement so concurrent redeemers cannot both win.
	Redeem(ctx context.Context, code, account string) (bool, error)
}

type promoCodeRepo struct {
	pool *pgxpool.Pool
}

// NewPromoCodeRepository creates a new promo code repository.
func NewPromoCodeRepository(pool *pgxpool.Pool) PromoCodeRepository {
	return &promoCodeRepo{pool: pool}
}

// GetUnredeemedByCode returns the promo code if it exists and is unclaimed.
func (r *promoCodeRepo) GetUnredeemedByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `SELECT code, credits, description, redeemed_by FROM promo_codes WHERE code = $1 AND redeemed_by IS NULL`

	var p models.PromoCode
	err := r.pool.QueryRow(ctx, query, code).Scan(&p.Code, &p.Credits, &p.Description, &p.RedeemedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert creates a new promo code.
func (r *promoCodeRepo) Insert(ctx context.Context, promo *models.PromoCode) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO promo_codes (code, credits, description, redeemed_by) VALUES ($1, $2, $3, $4)`,
		promo.Code,
		promo.Credits,
		promo.Description,
		promo.RedeemedBy,
	)
	return err
}

func (r *promoCodeRepo) Redeem(ctx context.Context, code, account string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE promo_codes SET redeemed_by = $1 WHERE code = $2 AND redeemed_by IS NULL`,
		account, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Compile-time check to ensure promoCodeRepo implements PromoCodeRepository.
var _ PromoCodeRepository = (*promoCodeRepo)(nil)
