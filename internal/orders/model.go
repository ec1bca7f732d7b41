package orders

import "time"

// OrderSummary mirrors the ERP order header. Rows are created and refreshed
// by the sync pipeline; the reminder engine only reads them (and flips
// confirmation fields on the contact).
type OrderSummary struct {
	ID uint64 `gorm:"primaryKey"`

	BAID     string `gorm:"column:baid;index;not null"`
	OrderNbr string `gorm:"uniqueIndex;not null"`

	CustomerName string `gorm:"type:text;not null;default:''"`

	DeliveryDate *time.Time `gorm:"index"`
	IsActive     bool       `gorm:"index;not null;default:true"`

	IsConfirmed bool `gorm:"not null;default:false"`
	ConfirmedAt *time.Time

	Contact *OrderContact `gorm:"foreignKey:OrderSummaryID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// OrderContact carries the delivery contact plus the per-phase bookkeeping
// flags. A failed flag means "this phase already escalated; hold the order
// until a human (or the next sync) clears it".
type OrderContact struct {
	ID             uint64 `gorm:"primaryKey"`
	OrderSummaryID uint64 `gorm:"uniqueIndex;not null"`

	DeliveryEmail string `gorm:"type:text;not null;default:''"`

	// Either being non-empty means the customer confirmed the delivery date.
	ConfirmedVia  string `gorm:"type:text;not null;default:''"`
	ConfirmedWith string `gorm:"type:text;not null;default:''"`

	SixWeekFailed  bool `gorm:"not null;default:false"`
	TenDayFailed   bool `gorm:"not null;default:false"`
	ThreeDayFailed bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Candidate is the flattened order+contact row a phase pass works from.
type Candidate struct {
	OrderID      uint64     `gorm:"column:order_id"`
	BAID         string     `gorm:"column:baid"`
	OrderNbr     string     `gorm:"column:order_nbr"`
	CustomerName string     `gorm:"column:customer_name"`
	DeliveryDate *time.Time `gorm:"column:delivery_date"`
	Email        string     `gorm:"column:email"`

	ConfirmedVia  string `gorm:"column:confirmed_via"`
	ConfirmedWith string `gorm:"column:confirmed_with"`

	Blocked bool `gorm:"column:blocked"`
}

// Confirmed reports whether the customer has confirmed the delivery date.
func (c Candidate) Confirmed() bool {
	return c.ConfirmedVia != "" || c.ConfirmedWith != ""
}
