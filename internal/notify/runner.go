package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jconte1/auth-api/internal/calendar"
	"github.com/Jconte1/auth-api/internal/metrics"
	"github.com/Jconte1/auth-api/internal/orders"
)

// OrderSource yields the candidate orders for one phase pass.
type OrderSource interface {
	Candidates(ctx context.Context, phase string, now time.Time) ([]orders.Candidate, error)
}

// Mailer delivers one reminder. Failures are the mailer's problem to report;
// the runner only tallies them.
type Mailer interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// Reminder is everything the mail channel needs to render a phase email.
type Reminder struct {
	To           string
	Phase        string
	OrderNbr     string
	CustomerName string
	DeliveryDate time.Time
}

// Summary is the tally one phase pass returns to its trigger.
type Summary struct {
	Attempts    int64 `json:"attempts"`
	Sent        int64 `json:"sent"`
	SendErrors  int64 `json:"sendErrors"`
	Resets      int64 `json:"resets"`
	Escalations int64 `json:"escalations"`
	Closed      int64 `json:"closed"`
	Skipped     int64 `json:"skipped"`
}

// counters is the atomic working copy of Summary shared by pass workers.
type counters struct {
	attempts    atomic.Int64
	sent        atomic.Int64
	sendErrors  atomic.Int64
	resets      atomic.Int64
	escalations atomic.Int64
	closed      atomic.Int64
	skipped     atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Attempts:    c.attempts.Load(),
		Sent:        c.sent.Load(),
		SendErrors:  c.sendErrors.Load(),
		Resets:      c.resets.Load(),
		Escalations: c.escalations.Load(),
		Closed:      c.closed.Load(),
		Skipped:     c.skipped.Load(),
	}
}

// Runner executes one finite pass of a phase over the current candidate set.
// Orders are independent: every mutation is keyed by (order, phase) and goes
// through the store's conditional updates, so bounded parallelism needs no
// locks and an overlapping pass of the same phase is harmless.
type Runner struct {
	Source    OrderSource
	Store     *Store
	Mailer    Mailer
	Escalator *Escalator

	TZ      *time.Location
	Workers int

	Log     *zap.Logger
	Metrics *metrics.Collector
}

// RunPhase walks all candidates for the phase once and returns the tally.
// A single order's failure never aborts the batch.
func (r *Runner) RunPhase(ctx context.Context, phaseID string, now time.Time) (Summary, error) {
	policy, ok := PolicyFor(phaseID)
	if !ok {
		return Summary{}, fmt.Errorf("unknown phase %q", phaseID)
	}

	start := time.Now()
	cands, err := r.Source.Candidates(ctx, policy.ID, now)
	if err != nil {
		return Summary{}, fmt.Errorf("phase %s: %w", policy.ID, err)
	}

	today := calendar.StartOfDay(now, r.TZ)

	var tally counters
	g, gctx := errgroup.WithContext(ctx)
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, c := range cands {
		c := c
		g.Go(func() error {
			r.processOrder(gctx, policy, c, today, now, &tally)
			return nil
		})
	}
	_ = g.Wait()

	sum := tally.summary()
	if r.Metrics != nil {
		r.Metrics.PassDuration.WithLabelValues(policy.ID).Observe(time.Since(start).Seconds())
	}
	r.Log.Info("phase pass complete",
		zap.String("phase", policy.ID),
		zap.Int("candidates", len(cands)),
		zap.Int64("attempts", sum.Attempts),
		zap.Int64("sent", sum.Sent),
		zap.Int64("send_errors", sum.SendErrors),
		zap.Int64("resets", sum.Resets),
		zap.Int64("escalations", sum.Escalations),
		zap.Int64("closed", sum.Closed),
		zap.Int64("skipped", sum.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return sum, nil
}

func (r *Runner) processOrder(ctx context.Context, policy Policy, c orders.Candidate, today, now time.Time, tally *counters) {
	log := r.Log.With(
		zap.String("phase", policy.ID),
		zap.String("order_nbr", c.OrderNbr),
	)

	// Confirmed orders get their open job closed and nothing else, ever.
	if c.Confirmed() {
		job, err := r.Store.FindJob(ctx, c.OrderID, policy.ID)
		if err != nil {
			log.Error("job lookup failed", zap.Error(err))
			r.skip(policy, tally)
			return
		}
		if job != nil && job.Status != StatusClosed {
			if err := r.Store.CloseJob(ctx, job.ID, now); err != nil {
				log.Error("close job failed", zap.Error(err))
				r.skip(policy, tally)
				return
			}
			tally.closed.Add(1)
			if r.Metrics != nil {
				r.Metrics.Closed.WithLabelValues(policy.ID).Inc()
			}
			return
		}
		r.skip(policy, tally)
		return
	}

	// Already escalated for this phase; held until the flag is cleared
	// upstream. The view filters these out, this guards a racing sync write.
	if c.Blocked {
		r.skip(policy, tally)
		return
	}

	if c.DeliveryDate == nil {
		r.skip(policy, tally)
		return
	}
	daysOut := calendar.DayOffset(*c.DeliveryDate, now, r.TZ)

	switch {
	case daysOut > policy.ResetAbove:
		r.handlePushedOut(ctx, policy, c, now, tally, log)

	case daysOut < policy.EscalateBelow:
		r.handleEscalation(ctx, policy, c, daysOut, ReasonLateWindow, now, tally, log)

	case policy.InSendWindow(daysOut):
		r.handleSendWindow(ctx, policy, c, daysOut, today, now, tally, log)

	default:
		// Offset between the window edge and the thresholds; only reachable
		// with a gapped policy.
		r.skip(policy, tally)
	}
}

// handlePushedOut resets reminder progress after the delivery date moved
// further out than the phase cares about.
func (r *Runner) handlePushedOut(ctx context.Context, policy Policy, c orders.Candidate, now time.Time, tally *counters, log *zap.Logger) {
	job, err := r.Store.FindJob(ctx, c.OrderID, policy.ID)
	if err != nil {
		log.Error("job lookup failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}
	if job == nil || (job.AttemptCount == 0 && job.EscalationPostedAt == nil) {
		r.skip(policy, tally)
		return
	}
	if err := r.Store.ResetJob(ctx, job.ID, c.DeliveryDate, now); err != nil {
		log.Error("reset job failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}
	tally.resets.Add(1)
	if r.Metrics != nil {
		r.Metrics.Resets.WithLabelValues(policy.ID).Inc()
	}
}

func (r *Runner) handleEscalation(ctx context.Context, policy Policy, c orders.Candidate, daysOut int, reason string, now time.Time, tally *counters, log *zap.Logger) {
	job, err := r.Store.EnsureJob(ctx, c.OrderID, policy.ID, c.DeliveryDate, now)
	if err != nil {
		log.Error("ensure job failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}
	r.escalateJob(ctx, policy, c, job, daysOut, reason, now, tally, log)
}

// handleSendWindow consumes the day's attempt slot and sends the reminder.
// Hitting the attempt ceiling inside the window is itself an escalation
// trigger, not merely a skip.
func (r *Runner) handleSendWindow(ctx context.Context, policy Policy, c orders.Candidate, daysOut int, today, now time.Time, tally *counters, log *zap.Logger) {
	job, err := r.Store.EnsureJob(ctx, c.OrderID, policy.ID, c.DeliveryDate, now)
	if err != nil {
		log.Error("ensure job failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}

	if job.AttemptCount >= policy.MaxAttempts {
		if job.Status != StatusEscalated {
			r.escalateJob(ctx, policy, c, job, daysOut, ReasonAttemptCeiling, now, tally, log)
			return
		}
		r.skip(policy, tally)
		return
	}

	claimed, err := r.Store.ClaimDailyAttempt(ctx, job.ID, policy.MaxAttempts, today, now)
	if err != nil {
		log.Error("claim attempt failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}
	if !claimed {
		// Already counted today (or a concurrent pass beat us to the slot).
		r.skip(policy, tally)
		return
	}
	tally.attempts.Add(1)
	if r.Metrics != nil {
		r.Metrics.Attempts.WithLabelValues(policy.ID).Inc()
	}

	// The attempt consumed today's slot whatever happens below; a send
	// failure must not re-arm same-day retries.
	if c.Email == "" {
		log.Warn("attempt counted but no delivery email on file")
		return
	}
	err = r.Mailer.SendReminder(ctx, Reminder{
		To:           c.Email,
		Phase:        policy.ID,
		OrderNbr:     c.OrderNbr,
		CustomerName: c.CustomerName,
		DeliveryDate: *c.DeliveryDate,
	})
	if err != nil {
		tally.sendErrors.Add(1)
		if r.Metrics != nil {
			r.Metrics.EmailErrors.WithLabelValues(policy.ID).Inc()
		}
		log.Warn("reminder send failed; attempt kept", zap.Error(err))
		return
	}
	tally.sent.Add(1)
	if r.Metrics != nil {
		r.Metrics.EmailsSent.WithLabelValues(policy.ID).Inc()
	}
}

func (r *Runner) escalateJob(ctx context.Context, policy Policy, c orders.Candidate, job *Job, daysOut int, reason string, now time.Time, tally *counters, log *zap.Logger) {
	out, err := r.Escalator.Escalate(ctx, job, c, policy, daysOut, reason, now)
	if err != nil {
		log.Error("escalation failed", zap.Error(err))
		r.skip(policy, tally)
		return
	}
	if !out.Claimed {
		// Lost the claim: another pass owns it.
		r.skip(policy, tally)
		return
	}
	tally.escalations.Add(1)
	if r.Metrics != nil {
		r.Metrics.Escalations.WithLabelValues(policy.ID).Inc()
		if !out.Posted {
			r.Metrics.EscalationFails.WithLabelValues(policy.ID).Inc()
		}
	}
	log.Info("order escalated",
		zap.String("reason", reason),
		zap.Int("days_out", daysOut),
		zap.Bool("erp_posted", out.Posted),
		zap.String("erp_id", out.ExternalID),
	)
}

func (r *Runner) skip(policy Policy, tally *counters) {
	tally.skipped.Add(1)
	if r.Metrics != nil {
		r.Metrics.Skipped.WithLabelValues(policy.ID).Inc()
	}
}
