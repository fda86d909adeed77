// Package dbtest opens throwaway sqlite databases carrying the portal schema
// for repository tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const profilesDDL = `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  is_staff INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

const companiesDDL = `
CREATE TABLE IF NOT EXISTS companies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  tax_id TEXT,
  payer_email TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const membershipsDDL = `
CREATE TABLE IF NOT EXISTS company_memberships (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (company_id, user_id)
);`

const fundingRequestsDDL = `
CREATE TABLE IF NOT EXISTS funding_requests (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  requested_amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  invoice_id TEXT,
  status TEXT NOT NULL DEFAULT 'review',
  archived_at DATETIME,
  archived_by TEXT,
  default_discount_rate TEXT,
  default_operation_days INTEGER,
  default_advance_pct TEXT,
  default_settings_source TEXT,
  file_path TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_by TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK ((archived_at IS NULL) = (archived_by IS NULL))
);`

const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  request_id TEXT NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_envelope_id TEXT,
  file_path TEXT,
  file_name TEXT NOT NULL DEFAULT '',
  content_type TEXT NOT NULL DEFAULT '',
  created_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const auditLogsDDL = `
CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  actor_id TEXT,
  entity TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  action TEXT NOT NULL,
  data TEXT,
  created_at DATETIME
);`

const integrationEventsDDL = `
CREATE TABLE IF NOT EXISTS integration_events (
  id TEXT PRIMARY KEY,
  company_id TEXT,
  provider TEXT NOT NULL,
  level TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at DATETIME
);`

const notificationsDDL = `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`

var schema = []string{
	profilesDDL,
	companiesDDL,
	membershipsDDL,
	fundingRequestsDDL,
	documentsDDL,
	auditLogsDDL,
	integrationEventsDDL,
	notificationsDDL,
}

// Open returns an isolated in-memory database with every portal table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:portal_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, ddl := range schema {
		if err := conn.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
