package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsGlob    = "sql/migrations/*.sql"
	migrationLockKey  = int64(51870423)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	// 0001_outbox_messages.up.sql → версия, имя, направление.
	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) label() string { return fmt.Sprintf("%d_%s", m.Version, m.Name) }

// MigrationState — состояние одной встроенной миграции.
type MigrationState struct {
	Version int64
	Name    string
	Applied bool
}

// migrationSession — соединение со схемой миграций и множеством применённых версий.
type migrationSession struct {
	conn       *sql.Conn
	migrations []migration
	applied    map[int64]bool
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrations(ctx, true, func(ms *migrationSession) error {
		for _, m := range pendingMigrations(ms.migrations, ms.applied, steps) {
			err := ms.step(ctx, m.UpSQL,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`,
				m.Version, m.Name)
			if err != nil {
				return fmt.Errorf("up migration %s: %w", m.label(), err)
			}
			ms.applied[m.Version] = true
		}
		return nil
	})
}

// MigrateDown откатывает миграции, начиная с последней применённой.
// steps<=0 интерпретируется как 1 шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrations(ctx, true, func(ms *migrationSession) error {
		rollback, err := rollbackMigrations(ms.migrations, ms.applied, steps)
		if err != nil {
			return err
		}
		for _, m := range rollback {
			err := ms.step(ctx, m.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
			if err != nil {
				return fmt.Errorf("down migration %s: %w", m.label(), err)
			}
			delete(ms.applied, m.Version)
		}
		return nil
	})
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (version int64, count int, err error) {
	err = s.withMigrations(ctx, false, func(ms *migrationSession) error {
		for v := range ms.applied {
			if v > version {
				version = v
			}
		}
		count = len(ms.applied)
		return nil
	})
	return version, count, err
}

// MigrationPlan возвращает все встроенные миграции с отметкой о применении.
func (s *Store) MigrationPlan(ctx context.Context) ([]MigrationState, error) {
	var plan []MigrationState
	err := s.withMigrations(ctx, false, func(ms *migrationSession) error {
		plan = make([]MigrationState, 0, len(ms.migrations))
		for _, m := range ms.migrations {
			plan = append(plan, MigrationState{Version: m.Version, Name: m.Name, Applied: ms.applied[m.Version]})
		}
		return nil
	})
	return plan, err
}

// withMigrations открывает выделенное соединение, создаёт таблицу версий и
// читает применённые версии. exclusive берёт advisory lock на время fn.
func (s *Store) withMigrations(ctx context.Context, exclusive bool, fn func(*migrationSession) error) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if exclusive {
		lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey)
		cancel()
		if err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		}()
	}

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}
	return fn(&migrationSession{conn: conn, migrations: migrations, applied: applied})
}

// step выполняет тело миграции и запись в schema_migrations одной транзакцией.
func (ms *migrationSession) step(ctx context.Context, body, record string, args ...any) error {
	tx, err := ms.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// pendingMigrations — неприменённые миграции по возрастанию версии, не больше steps (0 — все).
func pendingMigrations(migrations []migration, applied map[int64]bool, steps int) []migration {
	var pending []migration
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		pending = append(pending, m)
		if steps > 0 && len(pending) == steps {
			break
		}
	}
	return pending
}

// rollbackMigrations — последние steps применённых версий по убыванию.
// Версия, для которой нет встроенного файла, откатить нельзя.
func rollbackMigrations(migrations []migration, applied map[int64]bool, steps int) ([]migration, error) {
	versions := make([]int64, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if len(versions) > steps {
		versions = versions[:steps]
	}

	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	rollback := make([]migration, 0, len(versions))
	for _, v := range versions {
		m, ok := byVersion[v]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", v)
		}
		rollback = append(rollback, m)
	}
	return rollback, nil
}

// loadMigrationsFromFS собирает пары up/down файлов в список по возрастанию версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		parts := migrationFilePattern.FindStringSubmatch(base)
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, parts[2])
		}

		target := &m.UpSQL
		if parts[3] == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
