package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/auth"
	"github.com/Jconte1/auth-api/internal/config"
	"github.com/Jconte1/auth-api/internal/db"
	"github.com/Jconte1/auth-api/internal/erp"
	httpx "github.com/Jconte1/auth-api/internal/http"
	"github.com/Jconte1/auth-api/internal/logger"
	"github.com/Jconte1/auth-api/internal/mailer"
	"github.com/Jconte1/auth-api/internal/metrics"
	"github.com/Jconte1/auth-api/internal/notify"
	"github.com/Jconte1/auth-api/internal/orders"
)

func main() {
	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	collector.Register(registry)

	var mail notify.Mailer
	if cfg.NotifsEnabled {
		mail = &mailer.SMTP{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FrontendURL: cfg.FrontendURL,
			AppName:     cfg.AppName,
			Log:         log,
		}
	} else {
		mail = &mailer.Noop{Log: log}
	}

	store := &notify.Store{DB: gdb}
	ordersRepo := &orders.Repo{DB: gdb}
	erpClient := erp.NewClient(cfg.ERPBaseURL, cfg.ERPToken, log)

	runner := &notify.Runner{
		Source: &orders.View{DB: gdb, TZ: cfg.BusinessTZ},
		Store:  store,
		Mailer: mail,
		Escalator: &notify.Escalator{
			Store:    store,
			Contacts: ordersRepo,
			ERP:      erpClient,
			Log:      log,
		},
		TZ:      cfg.BusinessTZ,
		Workers: cfg.PassWorkers,
		Log:     log,
		Metrics: collector,
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:       gdb,
		JWT:      jwtSvc,
		Runner:   runner,
		Store:    store,
		ERP:      erpClient,
		Registry: registry,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
