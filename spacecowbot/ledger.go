package spacecowbot

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidAmount indicates a zero or negative point amount.
	ErrInvalidAmount = errors.New("point amount must be positive")

	// ErrInsufficientPoints indicates a debit larger than the
	// user's current balance.
	ErrInsufficientPoints = errors.New("not enough points")
)

func (d *database) CreditPoints(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	defer d.lock()()
	ctx, cancel := dbContext(ctx)
	defer cancel()

	rv := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(
				map[string]any{"points": gorm.Expr("points + ?", amount)},
			),
		},
	).Create(&Balance{UserID: userID, Points: amount})
	if rv.Error != nil {
		return fmt.Errorf("error crediting points: %w", rv.Error)
	}
	return nil
}

func (d *database) UserPoints(ctx context.Context, userID int64) (
	int64,
	bool,
	error,
) {
	ctx, cancel := dbContext(ctx)
	defer cancel()

	var balance Balance
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error fetching points: %w", err)
	}
	return balance.Points, true, nil
}

// DebitPoints subtracts amount from the user's balance with a single
// conditional UPDATE, so a concurrent debit can't take the balance
// negative. Zero rows affected means the balance was missing or short.
func (d *database) DebitPoints(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	defer d.lock()()
	ctx, cancel := dbContext(ctx)
	defer cancel()

	rv := d.db.WithContext(ctx).Model(&Balance{}).
		Where("user_id = ? AND points >= ?", userID, amount).
		Update("points", gorm.Expr("points - ?", amount))
	if rv.Error != nil {
		return fmt.Errorf("error debiting points: %w", rv.Error)
	}
	if rv.RowsAffected == 0 {
		return ErrInsufficientPoints
	}
	return nil
}

func (d *database) TopBalances(ctx context.Context, limit int) ([]Balance, error) {
	ctx, cancel := dbContext(ctx)
	defer cancel()

	balances := make([]Balance, 0, limit)
	err := d.db.WithContext(ctx).
		Order("points DESC, user_id ASC").
		Limit(limit).
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching leaderboard: %w", err)
	}
	return balances, nil
}
