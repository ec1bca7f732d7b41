package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/orders"
)

// ERPClient posts escalation records to the back office. The remote side
// dedupes on (order, phase), so a repeated post after a crashed pass is safe.
type ERPClient interface {
	PostDeliveryEscalation(ctx context.Context, req EscalationRequest) (EscalationResult, error)
}

type EscalationRequest struct {
	OrderID       uint64     `json:"orderId"`
	BAID          string     `json:"baid"`
	OrderNbr      string     `json:"orderNbr"`
	DeliveryDate  *time.Time `json:"deliveryDate"`
	DeliveryEmail string     `json:"deliveryEmail,omitempty"`
	Phase         string     `json:"phase"`
	DaysOut       int        `json:"daysOut"`
	AttemptCount  int        `json:"attemptCount"`
	Reason        string     `json:"reason"`
}

type EscalationResult struct {
	OK         bool   `json:"ok"`
	ExternalID string `json:"externalId,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ContactMarker raises the per-phase failed flag on the order's contact.
type ContactMarker interface {
	MarkPhaseFailed(ctx context.Context, orderID uint64, phase string) error
}

// Escalator hands an order to the back office exactly once per job lifetime.
//
// Order of operations: claim first, then flag the contact, then post. A lost
// claim means another pass already owns this escalation. A failed ERP post
// after a winning claim is not rolled back; rolling back could produce
// duplicate escalation tickets, while the remote side tolerates a repeat
// post.
type Escalator struct {
	Store    *Store
	Contacts ContactMarker
	ERP      ERPClient
	Log      *zap.Logger
}

type EscalationOutcome struct {
	Claimed    bool
	Posted     bool
	ExternalID string
}

func (e *Escalator) Escalate(ctx context.Context, job *Job, c orders.Candidate, phase Policy, daysOut int, reason string, now time.Time) (EscalationOutcome, error) {
	claimed, err := e.Store.ClaimEscalation(ctx, job.ID, now)
	if err != nil {
		return EscalationOutcome{}, err
	}
	if !claimed {
		// Normal concurrency outcome, not an error.
		return EscalationOutcome{}, nil
	}

	if err := e.Contacts.MarkPhaseFailed(ctx, c.OrderID, phase.ID); err != nil {
		// The claim stands; the next sync pass will re-derive the flag.
		e.Log.Error("mark contact failed after escalation claim",
			zap.String("phase", phase.ID),
			zap.String("order_nbr", c.OrderNbr),
			zap.Error(err),
		)
	}

	res, err := e.ERP.PostDeliveryEscalation(ctx, EscalationRequest{
		OrderID:       c.OrderID,
		BAID:          c.BAID,
		OrderNbr:      c.OrderNbr,
		DeliveryDate:  c.DeliveryDate,
		DeliveryEmail: c.Email,
		Phase:         phase.ID,
		DaysOut:       daysOut,
		AttemptCount:  job.AttemptCount,
		Reason:        reason,
	})
	if err != nil || !res.OK {
		e.Log.Warn("erp escalation post failed; claim kept, external side retriable",
			zap.String("phase", phase.ID),
			zap.String("order_nbr", c.OrderNbr),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return EscalationOutcome{Claimed: true}, nil
	}

	return EscalationOutcome{Claimed: true, Posted: true, ExternalID: res.ExternalID}, nil
}
