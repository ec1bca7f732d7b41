package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Jconte1/auth-api/internal/auth"
	"github.com/Jconte1/auth-api/internal/config"
	"github.com/Jconte1/auth-api/internal/erp"
	"github.com/Jconte1/auth-api/internal/http/handler"
	mw "github.com/Jconte1/auth-api/internal/http/middleware"
	"github.com/Jconte1/auth-api/internal/notify"
	"github.com/Jconte1/auth-api/internal/orders"
)

type Deps struct {
	DB       *gorm.DB
	JWT      *auth.JWT
	Runner   *notify.Runner
	Store    *notify.Store
	ERP      *erp.Client
	Registry *prometheus.Registry
	Log      *zap.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	cron := &handler.CronHandler{Runner: d.Runner, Store: d.Store, TZ: cfg.BusinessTZ, Log: d.Log}
	r.Route("/internal/cron", func(r chi.Router) {
		r.Use(auth.RequireCron(cfg.CronSecret))

		r.Post("/{phase}", cron.Run)
		r.Get("/{phase}/status", cron.Status)
	})

	confirm := &handler.ConfirmHandler{
		Orders: &orders.Repo{DB: d.DB},
		Store:  d.Store,
		ERP:    d.ERP,
		Log:    d.Log,
	}
	r.With(auth.RequireAuth(d.JWT)).Post("/orders/{orderNbr}/confirm", confirm.Confirm)

	return r
}
