package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("order not found")

type Repo struct {
	DB *gorm.DB
}

// FindByOrderNbr returns the order header with its contact.
func (r *Repo) FindByOrderNbr(ctx context.Context, orderNbr string) (*OrderSummary, error) {
	var o OrderSummary
	err := r.DB.WithContext(ctx).
		Preload("Contact").
		Where("order_nbr = ?", orderNbr).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// MarkPhaseFailed flips the phase's escalated flag on the contact. The flag
// stays up until the sync pipeline or a human clears it; the engine never
// clears it.
func (r *Repo) MarkPhaseFailed(ctx context.Context, orderID uint64, phase string) error {
	col, ok := blockedColumns[phase]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}
	res := r.DB.WithContext(ctx).
		Table("order_contacts").
		Where("order_summary_id = ?", orderID).
		Update(col, true)
	if res.Error != nil {
		return fmt.Errorf("mark %s failed: %w", phase, res.Error)
	}
	return nil
}

// Confirm records how and with whom the delivery date was confirmed. Either
// contact field being non-empty marks the order confirmed for every phase;
// the header flags are stamped alongside (idempotent on re-confirm).
func (r *Repo) Confirm(ctx context.Context, orderID uint64, via, with string, now time.Time) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderContact{}).
			Where("order_summary_id = ?", orderID).
			Updates(map[string]any{
				"confirmed_via":  via,
				"confirmed_with": with,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Exec(`
update order_summaries
set is_confirmed = true,
    confirmed_at = coalesce(confirmed_at, ?),
    updated_at = ?
where id = ?`, now, now, orderID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("confirm order %d: %w", orderID, err)
	}
	return nil
}
