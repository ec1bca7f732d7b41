package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Jconte1/auth-api/internal/auth"
	"github.com/Jconte1/auth-api/internal/config"
	"github.com/Jconte1/auth-api/internal/erp"
	"github.com/Jconte1/auth-api/internal/notify"
	"github.com/Jconte1/auth-api/internal/orders"
)

type nopMailer struct{}

func (nopMailer) SendReminder(context.Context, notify.Reminder) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB, *auth.JWT) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "router_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orders.OrderSummary{}, &orders.OrderContact{}, &notify.Job{}))

	log := zap.NewNop()
	store := &notify.Store{DB: db}
	erpClient := erp.NewClient("", "", log)
	runner := &notify.Runner{
		Source: &orders.View{DB: db, TZ: time.UTC},
		Store:  store,
		Mailer: nopMailer{},
		Escalator: &notify.Escalator{
			Store:    store,
			Contacts: &orders.Repo{DB: db},
			ERP:      erpClient,
			Log:      log,
		},
		TZ:      time.UTC,
		Workers: 2,
		Log:     log,
	}

	jwtSvc := auth.NewJWT("test-jwt-secret")
	cfg := config.Config{
		CronSecret: "test-cron-secret",
		BusinessTZ: time.UTC,
	}
	h := NewRouter(cfg, Deps{
		DB:     db,
		JWT:    jwtSvc,
		Runner: runner,
		Store:  store,
		ERP:    erpClient,
		Log:    log,
	})
	return h, db, jwtSvc
}

func seedOrder(t *testing.T, db *gorm.DB, id uint64, orderNbr string, delivery time.Time) {
	t.Helper()
	d := delivery
	require.NoError(t, db.Create(&orders.OrderSummary{
		ID:           id,
		BAID:         "BA001",
		OrderNbr:     orderNbr,
		CustomerName: "Pat Doe",
		DeliveryDate: &d,
		IsActive:     true,
	}).Error)
	require.NoError(t, db.Create(&orders.OrderContact{
		OrderSummaryID: id,
		DeliveryEmail:  "pat@example.com",
	}).Error)
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCronRun(t *testing.T) {
	h, db, _ := newTestRouter(t)
	seedOrder(t, db, 1, "SO-1001", time.Now().AddDate(0, 0, 42))

	t.Run("requires secret", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/cron/T42", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown phase", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/internal/cron/T99", nil)
		req.Header.Set("Authorization", "Bearer test-cron-secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("runs a pass", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/internal/cron/t42", nil)
		req.Header.Set("Authorization", "Bearer test-cron-secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			OK      bool           `json:"ok"`
			Phase   string         `json:"phase"`
			RunID   string         `json:"runId"`
			Summary notify.Summary `json:"summary"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.OK)
		assert.Equal(t, "T42", body.Phase)
		assert.NotEmpty(t, body.RunID)
		assert.Equal(t, int64(1), body.Summary.Attempts)
	})

	t.Run("status lists today's jobs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/internal/cron/T42/status?token=test-cron-secret", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			OK     bool           `json:"ok"`
			Counts map[string]int `json:"counts"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.OK)
		assert.Equal(t, 1, body.Counts[notify.StatusOpen])
	})
}

func TestConfirmEndpoint(t *testing.T) {
	h, db, jwtSvc := newTestRouter(t)
	seedOrder(t, db, 1, "SO-1001", time.Now().AddDate(0, 0, 42))

	store := &notify.Store{DB: db}
	_, err := store.EnsureJob(context.Background(), 1, "T42", nil, time.Now())
	require.NoError(t, err)

	tok, err := jwtSvc.Sign(7)
	require.NoError(t, err)

	t.Run("requires auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/SO-1001/confirm", bytes.NewBufferString(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/orders/SO-9999/confirm", bytes.NewBufferString(`{}`))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("confirms and closes jobs", func(t *testing.T) {
		body := bytes.NewBufferString(`{"confirmedVia":"phone","confirmedWith":"Pat"}`)
		req := httptest.NewRequest(http.MethodPost, "/orders/SO-1001/confirm", body)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			OK         bool   `json:"ok"`
			OrderNbr   string `json:"orderNbr"`
			JobsClosed int64  `json:"jobsClosed"`
			By         uint64 `json:"by"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "SO-1001", resp.OrderNbr)
		assert.Equal(t, int64(1), resp.JobsClosed)
		assert.Equal(t, uint64(7), resp.By)

		job, err := store.FindJob(context.Background(), 1, "T42")
		require.NoError(t, err)
		assert.Equal(t, notify.StatusClosed, job.Status)

		o, err := (&orders.Repo{DB: db}).FindByOrderNbr(context.Background(), "SO-1001")
		require.NoError(t, err)
		assert.True(t, o.IsConfirmed)
	})

	t.Run("empty body defaults to portal", func(t *testing.T) {
		d := time.Now().AddDate(0, 0, 35)
		require.NoError(t, db.Create(&orders.OrderSummary{
			ID: 3, BAID: "BA003", OrderNbr: "SO-3003", DeliveryDate: &d, IsActive: true,
		}).Error)
		require.NoError(t, db.Create(&orders.OrderContact{
			OrderSummaryID: 3,
			DeliveryEmail:  "sam@example.com",
		}).Error)

		req := httptest.NewRequest(http.MethodPost, "/orders/SO-3003/confirm", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		o, err := (&orders.Repo{DB: db}).FindByOrderNbr(context.Background(), "SO-3003")
		require.NoError(t, err)
		assert.True(t, o.IsConfirmed)
		require.NotNil(t, o.Contact)
		assert.Equal(t, "portal", o.Contact.ConfirmedVia)
	})

	t.Run("no contact on file", func(t *testing.T) {
		d := time.Now().AddDate(0, 0, 30)
		require.NoError(t, db.Create(&orders.OrderSummary{
			ID: 2, BAID: "BA002", OrderNbr: "SO-2002", DeliveryDate: &d, IsActive: true,
		}).Error)

		req := httptest.NewRequest(http.MethodPost, "/orders/SO-2002/confirm", bytes.NewBufferString(`{}`))
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
