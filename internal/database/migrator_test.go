package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-studio-backend/internal/database"
)

var migrations = []string{"001_usage_ledger.sql", "002_purchase_claims.sql"}

func newMigrator(t *testing.T) (*database.Migrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := logtest.NewNullLogger()
	return database.NewMigrator(db, logrus.NewEntry(logger)), mock
}

func expectStatus(mock sqlmock.Sqlmock, name string, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_migrations WHERE name = $1")).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestMigrator_AppliesPendingMigrations(t *testing.T) {
	m, mock := newMigrator(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	expectStatus(mock, migrations[0], 1)
	expectStatus(mock, migrations[1], 0)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS purchase_claims").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (name, applied_at) VALUES ($1, NOW())")).
		WithArgs(migrations[1]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Run(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_RollsBackFailedMigration(t *testing.T) {
	m, mock := newMigrator(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	expectStatus(mock, migrations[0], 0)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := m.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), migrations[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
