// Package mailer delivers reminder emails over SMTP. The runner only sees
// the notify.Mailer interface; swap in Noop to disable sending.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/notify"
)

// Showroom phone list shared by every reminder footer.
var storeNumbers = []struct {
	Name  string
	Phone string
}{
	{"Salt Lake City", "1-801-466-0990"},
	{"Provo", "1-801-932-0027"},
	{"Ketchum", "1-208-576-3643"},
	{"Boise", "1-208-258-2479"},
	{"Jackson", "1-307-200-4603"},
}

type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	FrontendURL string
	AppName     string

	Log *zap.Logger
}

func (m *SMTP) SendReminder(ctx context.Context, r notify.Reminder) error {
	subject, html := render(r, m.FrontendURL, m.AppName)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.AppName, m.From)
	fmt.Fprintf(&b, "To: %s\r\n", r.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}

	if err := smtp.SendMail(addr, auth, m.From, []string{r.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.Log.Debug("reminder email sent",
		zap.String("phase", r.Phase),
		zap.String("order_nbr", r.OrderNbr),
	)
	return nil
}

func render(r notify.Reminder, frontendURL, appName string) (subject, html string) {
	date := r.DeliveryDate.Format("Monday, January 2, 2006")
	link := fmt.Sprintf("%s/jobs/upcoming/%s", frontendURL, r.OrderNbr)

	switch r.Phase {
	case "T42":
		subject = fmt.Sprintf("Please confirm your delivery date — Order %s", r.OrderNbr)
	case "T14":
		subject = fmt.Sprintf("Your delivery is two weeks out — Order %s", r.OrderNbr)
	default:
		subject = fmt.Sprintf("Your delivery is almost here — Order %s", r.OrderNbr)
	}

	greeting := "Hello,"
	if r.CustomerName != "" {
		greeting = fmt.Sprintf("Hello %s,", r.CustomerName)
	}

	var phones strings.Builder
	for _, s := range storeNumbers {
		fmt.Fprintf(&phones, `<li><strong>%s</strong> — %s</li>`, s.Name, s.Phone)
	}

	html = fmt.Sprintf(`
<div style="font-family:sans-serif">
  <p>%s</p>
  <p>Order <strong>%s</strong> is scheduled for delivery on <strong>%s</strong>.
  Please confirm that this date still works for you.</p>
  <p><a href="%s" style="display:inline-block;padding:10px 16px;background:#111;color:#fff;text-decoration:none;border-radius:6px;font-weight:600;">Review &amp; Confirm</a></p>
  <hr style="border:none;border-top:1px solid #ddd;margin:20px 0"/>
  <p><em>If anything looks incorrect or needs to change, please contact your salesperson or call the showroom associated with your order.</em></p>
  <ul style="margin:8px 0 0 18px;padding:0;line-height:1.6">%s</ul>
  <p style="margin:16px 0 0 0;color:#555;"><em>This email was sent from a notification-only address. Please don't reply; this mailbox isn't monitored.</em></p>
  <p>— The %s Team</p>
</div>`, greeting, r.OrderNbr, date, link, phones.String(), appName)

	return subject, html
}
