package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/calendar"
	"github.com/Jconte1/auth-api/internal/notify"
)

// CronHandler exposes the per-phase pass to the external scheduler. One POST
// runs one complete pass; overlap protection lives in the job store, not
// here.
type CronHandler struct {
	Runner *notify.Runner
	Store  *notify.Store
	TZ     *time.Location
	Log    *zap.Logger
}

func (h *CronHandler) Run(w http.ResponseWriter, r *http.Request) {
	phase := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "phase")))
	if _, ok := notify.PolicyFor(phase); !ok {
		http.Error(w, "unknown phase", http.StatusNotFound)
		return
	}

	runID := uuid.NewString()
	now := time.Now()

	sum, err := h.Runner.RunPhase(r.Context(), phase, now)
	if err != nil {
		h.Log.Error("phase pass failed",
			zap.String("phase", phase),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"phase":   phase,
		"runId":   runID,
		"summary": sum,
	})
}

type statusJob struct {
	ID                 uint64     `json:"id"`
	OrderSummaryID     uint64     `json:"orderSummaryId"`
	Status             string     `json:"status"`
	AttemptCount       int        `json:"attemptCount"`
	EscalationPostedAt *time.Time `json:"escalationPostedAt"`
	ScheduledAt        time.Time  `json:"scheduledAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Status reports the jobs a phase touched today, for cron-side diagnostics.
func (h *CronHandler) Status(w http.ResponseWriter, r *http.Request) {
	phase := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "phase")))
	if _, ok := notify.PolicyFor(phase); !ok {
		http.Error(w, "unknown phase", http.StatusNotFound)
		return
	}

	now := time.Now()
	dayStart := calendar.StartOfDay(now, h.TZ)
	dayEnd := calendar.AddDays(now, 1, h.TZ)

	jobs, err := h.Store.TouchedSince(r.Context(), phase, dayStart, dayEnd, 200)
	if err != nil {
		h.Log.Error("status query failed", zap.String("phase", phase), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	counts := map[string]int{}
	out := make([]statusJob, 0, len(jobs))
	for _, j := range jobs {
		counts[j.Status]++
		out = append(out, statusJob{
			ID:                 j.ID,
			OrderSummaryID:     j.OrderSummaryID,
			Status:             j.Status,
			AttemptCount:       j.AttemptCount,
			EscalationPostedAt: j.EscalationPostedAt,
			ScheduledAt:        j.ScheduledAt,
			UpdatedAt:          j.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":     true,
		"phase":  phase,
		"day":    calendar.DayKey(now, h.TZ),
		"counts": counts,
		"jobs":   out,
	})
}
