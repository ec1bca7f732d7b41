package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Jconte1/auth-api/internal/calendar"
)

// blockedColumns maps a phase ID to the contact column holding its
// escalated/failed flag.
var blockedColumns = map[string]string{
	"T42": "six_week_failed",
	"T14": "ten_day_failed",
	"T3":  "three_day_failed",
}

var ErrUnknownPhase = fmt.Errorf("orders: unknown phase")

// View is the read side the phase runner iterates. Candidates are active
// orders delivering today or later that the phase has not already escalated.
// Confirmation state is returned rather than filtered so the runner can close
// open jobs for freshly confirmed orders.
type View struct {
	DB *gorm.DB
	TZ *time.Location
}

func (v *View) Candidates(ctx context.Context, phase string, now time.Time) ([]Candidate, error) {
	col, ok := blockedColumns[phase]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}
	blocked := "c." + pq.QuoteIdentifier(col)

	today := calendar.StartOfDay(now, v.TZ)

	var rows []Candidate
	err := v.DB.WithContext(ctx).
		Table("order_summaries as o").
		Select("o.id as order_id, o.baid, o.order_nbr, o.customer_name, o.delivery_date, "+
			"coalesce(c.delivery_email, '') as email, "+
			"coalesce(c.confirmed_via, '') as confirmed_via, "+
			"coalesce(c.confirmed_with, '') as confirmed_with, "+
			"coalesce("+blocked+", ?) as blocked", false).
		Joins("left join order_contacts as c on c.order_summary_id = o.id").
		Where("o.is_active = ?", true).
		Where("o.delivery_date is not null").
		Where("o.delivery_date >= ?", today).
		Where("coalesce("+blocked+", ?) = ?", false, false).
		Order("o.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return rows, nil
}
