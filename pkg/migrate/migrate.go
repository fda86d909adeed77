package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/factoring-portal/pkg/config"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	// VersionTable is the goose bookkeeping table for the factoring schema.
	VersionTable = "factoring_schema_migrations"
)

// Command is a migration operation accepted by cmd/migrate.
type Command string

const (
	CommandUp       Command = "up"
	CommandDown     Command = "down"
	CommandStatus   Command = "status"
	CommandVersion  Command = "version"
	CommandCreate   Command = "create"
	CommandValidate Command = "validate"
)

// ErrRollbackInProd is returned for any command that would move the
// production schema backwards.
var ErrRollbackInProd = errors.New("schema rollbacks are refused in production")

func ParseCommand(raw string) (Command, error) {
	switch cmd := Command(raw); cmd {
	case CommandUp, CommandDown, CommandStatus, CommandVersion, CommandCreate, CommandValidate:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown migrate command %q", raw)
	}
}

// NeedsDB reports whether the command talks to the database.
func (c Command) NeedsDB() bool {
	return c != CommandCreate && c != CommandValidate
}

// Allowed rejects down in production. A version target below the current
// version is rejected later by MigrateToVersion.
func Allowed(app config.AppConfig, cmd Command) error {
	if cmd == CommandDown && app.IsProd() {
		return ErrRollbackInProd
	}
	return nil
}

func configure() error {
	// migrations use Postgres-only DDL (enums, plpgsql)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetTableName(VersionTable)
	return nil
}

// Run executes up, down or status against db.
func Run(ctx context.Context, db *sql.DB, dir string, cmd Command) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	switch cmd {
	case CommandUp, CommandDown, CommandStatus:
	default:
		return fmt.Errorf("command %q cannot be run directly", cmd)
	}
	if err := configure(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, string(cmd), db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// MigrateToVersion moves the schema to targetVersion. Moving down requires
// allowDown.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string, allowDown bool) error {
	target, err := parseVersion(targetVersion)
	if err != nil {
		return err
	}
	if err := configure(); err != nil {
		return err
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	case !allowDown:
		return fmt.Errorf("version %d is below current %d: %w", target, current, ErrRollbackInProd)
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

func parseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("target version is required")
	}
	if !versionRe.MatchString(raw) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return strconv.ParseInt(raw, 10, 64)
}
