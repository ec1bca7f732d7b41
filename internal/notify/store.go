package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns notification_jobs. All writes are single conditional statements;
// callers learn whether they won a contended transition from RowsAffected,
// never from a prior read.
type Store struct {
	DB *gorm.DB
}

// FindJob returns the job for (order, phase), or nil when none exists.
func (s *Store) FindJob(ctx context.Context, orderID uint64, phase string) (*Job, error) {
	var j Job
	err := s.DB.WithContext(ctx).
		Where("order_summary_id = ? and phase = ?", orderID, phase).
		First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return &j, nil
}

// EnsureJob creates the job row if absent and returns the current row either
// way. The insert rides on the (order, phase) unique index, so concurrent
// callers cannot produce duplicates. An existing row only gets its delivery
// date snapshot refreshed; status is never touched here, so closed and
// escalated jobs stay terminal.
func (s *Store) EnsureJob(ctx context.Context, orderID uint64, phase string, snapshot *time.Time, now time.Time) (*Job, error) {
	assignments := map[string]any{"updated_at": now}
	if snapshot != nil {
		assignments["last_delivery_date_snapshot"] = *snapshot
	}

	j := Job{
		OrderSummaryID:           orderID,
		Phase:                    phase,
		Status:                   StatusOpen,
		LastDeliveryDateSnapshot: snapshot,
		IdempotencyKey:           fmt.Sprintf("%d-%s", orderID, phase),
		ScheduledAt:              now,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_summary_id"}, {Name: "phase"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&j).Error
	if err != nil {
		return nil, fmt.Errorf("ensure job: %w", err)
	}

	// Re-read: on conflict the struct above does not reflect the row that won.
	out, err := s.FindJob(ctx, orderID, phase)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("ensure job: row vanished for order %d phase %s", orderID, phase)
	}
	return out, nil
}

// ClaimDailyAttempt consumes the job's single attempt slot for the business
// day starting at dayStart. It succeeds only while the job is open, below the
// attempt ceiling, and not already stamped today, all checked inside the
// update itself, so a re-run pass on the same day is a no-op.
func (s *Store) ClaimDailyAttempt(ctx context.Context, jobID uint64, maxAttempts int, dayStart, now time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", jobID).
		Where("status = ?", StatusOpen).
		Where("attempt_count < ?", maxAttempts).
		Where("(last_attempt_at is null or last_attempt_at < ?)", dayStart).
		Updates(map[string]any{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim attempt: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResetJob zeroes the attempt counter and clears any escalation stamp after
// the delivery date moved back out of range. Closed jobs are left alone.
func (s *Store) ResetJob(ctx context.Context, jobID uint64, snapshot *time.Time, now time.Time) error {
	updates := map[string]any{
		"attempt_count":        0,
		"escalation_posted_at": nil,
		"status":               StatusOpen,
		"updated_at":           now,
	}
	if snapshot != nil {
		updates["last_delivery_date_snapshot"] = *snapshot
	}
	res := s.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? and status <> ?", jobID, StatusClosed).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("reset job: %w", res.Error)
	}
	return nil
}

// ClaimEscalation is the at-most-one-winner primitive: the update only lands
// while escalation_posted_at is still null, so under overlapping passes
// exactly one caller sees true and owns the external write.
func (s *Store) ClaimEscalation(ctx context.Context, jobID uint64, now time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", jobID).
		Where("escalation_posted_at is null").
		Where("status <> ?", StatusClosed).
		Updates(map[string]any{
			"escalation_posted_at": now,
			"status":               StatusEscalated,
			"attempt_count":        0,
			"updated_at":           now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim escalation: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CloseJob marks the job terminal after the customer confirmed. No-op when
// already closed.
func (s *Store) CloseJob(ctx context.Context, jobID uint64, now time.Time) error {
	res := s.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? and status <> ?", jobID, StatusClosed).
		Updates(map[string]any{
			"status":     StatusClosed,
			"closed_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("close job: %w", res.Error)
	}
	return nil
}

// CloseOpenJobsForOrder closes every non-terminal job the order still has,
// across phases. Used by the confirm endpoint so an open T42 job cannot
// escalate after the customer already said yes.
func (s *Store) CloseOpenJobsForOrder(ctx context.Context, orderID uint64, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&Job{}).
		Where("order_summary_id = ? and status <> ?", orderID, StatusClosed).
		Updates(map[string]any{
			"status":     StatusClosed,
			"closed_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("close jobs for order %d: %w", orderID, res.Error)
	}
	return res.RowsAffected, nil
}

// TouchedSince lists jobs for a phase updated in [from, to), newest first,
// capped for status payloads.
func (s *Store) TouchedSince(ctx context.Context, phase string, from, to time.Time, limit int) ([]Job, error) {
	var jobs []Job
	err := s.DB.WithContext(ctx).
		Where("phase = ?", phase).
		Where("updated_at >= ? and updated_at < ?", from, to).
		Order("updated_at desc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("touched jobs: %w", err)
	}
	return jobs, nil
}
