package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jheapagent/pkg/config"
)

func TestNewGormDB_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "audit.db"),
	}

	db, err := NewGormDB(cfg)
	require.NoError(t, err)

	repos, err := NewRepositories(db)
	require.NoError(t, err)
	defer repos.Close()

	assert.NoError(t, repos.HealthCheck(context.Background()))
}

func TestNewGormDB_UnsupportedType(t *testing.T) {
	db, err := NewGormDB(&config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database type")
}

// newMockGormDB wires a sqlmock connection behind the MySQL dialector so
// repository plumbing can be exercised without a server.
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestRepositories_HealthCheck_Mock(t *testing.T) {
	db, mock := newMockGormDB(t)
	mock.ExpectPing()

	repos := &Repositories{gormDB: db}
	assert.NoError(t, repos.HealthCheck(context.Background()))
}

func TestGormInspectionRepository_CountByStatus_Mock(t *testing.T) {
	db, mock := newMockGormDB(t)
	repo := NewGormInspectionRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `inspection_records`").
		WillReturnRows(rows)

	count, err := repo.CountByStatus(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
