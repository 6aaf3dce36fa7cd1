// Package repository persists an audit log of heap inspections. Every
// query the service answers can be recorded, and whole reports can be
// archived for later retrieval. Persistence is optional: when no database
// is configured the service runs without it.
package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/jheapagent/pkg/model"
)

// InspectionRepository records individual query outcomes.
type InspectionRepository interface {
	// SaveResult appends one query outcome to the audit log.
	SaveResult(ctx context.Context, sourcePath string, result *model.InspectionResult) error

	// ListBySource returns the most recent results recorded against a
	// heap source, newest first.
	ListBySource(ctx context.Context, sourcePath string, limit int) ([]*model.InspectionResult, error)

	// CountByStatus returns how many recorded results carry the status.
	CountByStatus(ctx context.Context, status model.QueryStatus) (int64, error)
}

// ReportRepository archives batch reports.
type ReportRepository interface {
	// SaveReport stores a full report. storageURL is where the rendered
	// report artifact was uploaded, empty if it was not.
	SaveReport(ctx context.Context, report *model.Report, storageURL string) error

	// LatestReport returns the most recently archived report for a heap
	// source.
	LatestReport(ctx context.Context, sourcePath string) (*model.Report, error)
}

// Repositories bundles all repository instances behind one connection.
type Repositories struct {
	Inspection InspectionRepository
	Report     ReportRepository
	gormDB     *gorm.DB
}

// NewRepositories creates all repositories using GORM and runs schema
// migration.
func NewRepositories(gormDB *gorm.DB) (*Repositories, error) {
	if err := gormDB.AutoMigrate(&InspectionRecord{}, &ReportRecord{}); err != nil {
		return nil, err
	}
	return &Repositories{
		Inspection: NewGormInspectionRepository(gormDB),
		Report:     NewGormReportRepository(gormDB),
		gormDB:     gormDB,
	}, nil
}

// Close closes the database connection.
func (r *Repositories) Close() error {
	if r.gormDB == nil {
		return nil
	}
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is still alive.
func (r *Repositories) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB returns the underlying sql.DB connection.
func (r *Repositories) DB() *sql.DB {
	sqlDB, _ := r.gormDB.DB()
	return sqlDB
}
