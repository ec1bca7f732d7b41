package notify

// Policy is the static shape of one reminder phase. Day numbers are calendar
// days until delivery in the business timezone.
type Policy struct {
	ID        string
	TargetDay int

	// SendDays is the inclusive set of day offsets on which attempts are made.
	SendDays map[int]bool

	// Strictly below this offset the order escalates.
	EscalateBelow int
	// Strictly above this offset an in-progress job resets (the delivery
	// date was pushed back out).
	ResetAbove int

	MaxAttempts int
}

func (p Policy) InSendWindow(daysOut int) bool {
	return p.SendDays[daysOut]
}

// Escalation reasons carried on the ERP write.
const (
	ReasonLateWindow     = "late-window"
	ReasonAttemptCeiling = "attempt-ceiling"
)

// The three campaigns: six weeks out, two weeks out, and the final
// near-delivery nudge. The near-delivery phase sends a single reminder.
var phases = []Policy{
	{
		ID:            "T42",
		TargetDay:     42,
		SendDays:      map[int]bool{42: true, 41: true, 40: true, 39: true},
		EscalateBelow: 39,
		ResetAbove:    42,
		MaxAttempts:   3,
	},
	{
		ID:            "T14",
		TargetDay:     14,
		SendDays:      map[int]bool{14: true, 13: true, 12: true, 11: true},
		EscalateBelow: 11,
		ResetAbove:    14,
		MaxAttempts:   3,
	},
	{
		ID:            "T3",
		TargetDay:     3,
		SendDays:      map[int]bool{4: true, 3: true, 2: true},
		EscalateBelow: 2,
		ResetAbove:    4,
		MaxAttempts:   1,
	},
}

// PolicyFor resolves a phase ID (case-sensitive, e.g. "T42").
func PolicyFor(id string) (Policy, bool) {
	for _, p := range phases {
		if p.ID == id {
			return p, true
		}
	}
	return Policy{}, false
}

// PhaseIDs lists configured phases in campaign order.
func PhaseIDs() []string {
	ids := make([]string, 0, len(phases))
	for _, p := range phases {
		ids = append(ids, p.ID)
	}
	return ids
}
