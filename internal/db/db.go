package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Jconte1/auth-api/internal/notify"
	"github.com/Jconte1/auth-api/internal/orders"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&orders.OrderSummary{},
		&orders.OrderContact{},
		&notify.Job{},
	); err != nil {
		return err
	}

	// Candidate scan: active upcoming orders
	if err := gdb.Exec(`create index if not exists idx_orders_active_delivery on order_summaries(is_active, delivery_date);`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_jobs_phase_updated on notification_jobs(phase, updated_at desc);`,
		`create index if not exists idx_jobs_phase_status on notification_jobs(phase, status);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
