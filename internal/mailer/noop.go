package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/notify"
)

// Noop swaps in when NOTIFS_ENABLED is false: attempts still count and
// escalations still fire, but nothing reaches a mailbox.
type Noop struct {
	Log *zap.Logger
}

func (m *Noop) SendReminder(ctx context.Context, r notify.Reminder) error {
	m.Log.Info("notifications disabled; reminder suppressed",
		zap.String("phase", r.Phase),
		zap.String("order_nbr", r.OrderNbr),
		zap.String("to", r.To),
	)
	return nil
}
