package notify

import "time"

const (
	StatusOpen      = "open"
	StatusEscalated = "escalated"
	StatusClosed    = "closed"
)

// Job is the per-(order, phase) reminder ledger. One row per pair, enforced
// by the composite unique index; every mutation is a single atomic update so
// overlapping cron passes cannot double-count or double-escalate.
type Job struct {
	ID uint64 `gorm:"primaryKey"`

	OrderSummaryID uint64 `gorm:"uniqueIndex:uq_notification_jobs_order_phase;not null"`
	Phase          string `gorm:"uniqueIndex:uq_notification_jobs_order_phase;type:text;not null"`

	Status string `gorm:"index;type:text;not null;default:'open'"` // open/escalated/closed

	AttemptCount  int `gorm:"not null;default:0"`
	LastAttemptAt *time.Time

	// Set at most once per job lifetime; non-null means the escalation was
	// claimed and the job is terminal here.
	EscalationPostedAt *time.Time

	LastDeliveryDateSnapshot *time.Time

	IdempotencyKey string `gorm:"uniqueIndex;type:text;not null"`

	ScheduledAt time.Time `gorm:"not null"`
	ClosedAt    *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Job) TableName() string { return "notification_jobs" }
