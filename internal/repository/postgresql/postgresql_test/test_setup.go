// Package postgresqltest runs the PostgreSQL repositories against a live
// database named by TEST_DATABASE_URL.
package postgresqltest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds the connection shared by the repository tests.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL, applies the schema and
// empties every table. The test is skipped when no database is configured.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 5, MinConns: 1})
	require.NoError(t, err)

	setup := &TestDatabaseSetup{DB: db}
	t.Cleanup(setup.Close)

	require.NoError(t, setup.applySchema(ctx))
	require.NoError(t, setup.TruncateAllTables(ctx))
	return setup
}

func (t *TestDatabaseSetup) applySchema(ctx context.Context) error {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations", "0001_init.sql")
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := t.DB.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// TruncateAllTables removes all rows from the engine's tables
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"notifications",
		"work_entries",
		"leaves",
		"attendances",
		"employee_schedule_assignments",
		"employees",
		"work_schedule_times",
		"work_schedules",
		"users",
		"branches",
		"companies",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Close closes the database connection
func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}

// seed holds the identifiers created by seedEmployee.
type seed struct {
	CompanyID  string
	AdminID    string
	EmployeeID string
	ScheduleID string
}

// seedEmployee inserts a company in Asia/Jakarta with one owner and one
// employee on a Monday 08:00-17:00 schedule with a 12:00-13:00 break.
func (t *TestDatabaseSetup) seedEmployee(ctx context.Context) (seed, error) {
	var s seed
	err := t.DB.QueryRow(ctx,
		`INSERT INTO companies (name, timezone) VALUES ('Acme', 'Asia/Jakarta') RETURNING id`,
	).Scan(&s.CompanyID)
	if err != nil {
		return s, err
	}

	err = t.DB.QueryRow(ctx,
		`INSERT INTO users (company_id, email, role) VALUES ($1, 'owner@acme.test', 'owner') RETURNING id`,
		s.CompanyID,
	).Scan(&s.AdminID)
	if err != nil {
		return s, err
	}
	if _, err = t.DB.Exec(ctx,
		`INSERT INTO users (company_id, email, role) VALUES ($1, 'staff@acme.test', 'employee')`,
		s.CompanyID,
	); err != nil {
		return s, err
	}

	err = t.DB.QueryRow(ctx,
		`INSERT INTO work_schedules (company_id, name, hours_per_day) VALUES ($1, 'Office', 8) RETURNING id`,
		s.CompanyID,
	).Scan(&s.ScheduleID)
	if err != nil {
		return s, err
	}
	if _, err = t.DB.Exec(ctx, `
		INSERT INTO work_schedule_times (work_schedule_id, day_of_week, clock_in_time, break_start_time, break_end_time, clock_out_time)
		VALUES ($1, 1, '08:00', '12:00', '13:00', '17:00')`,
		s.ScheduleID,
	); err != nil {
		return s, err
	}

	err = t.DB.QueryRow(ctx, `
		INSERT INTO employees (company_id, contract_id, work_schedule_id, full_name)
		VALUES ($1, 'ctr-1', $2, 'Test Employee') RETURNING id`,
		s.CompanyID, s.ScheduleID,
	).Scan(&s.EmployeeID)
	return s, err
}
