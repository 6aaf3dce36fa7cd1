package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jheapagent/pkg/model"
)

// GormInspectionRepository implements InspectionRepository using GORM.
type GormInspectionRepository struct {
	db *gorm.DB
}

// NewGormInspectionRepository creates a new GormInspectionRepository.
func NewGormInspectionRepository(db *gorm.DB) *GormInspectionRepository {
	return &GormInspectionRepository{db: db}
}

// SaveResult appends one query outcome to the audit log.
func (r *GormInspectionRepository) SaveResult(ctx context.Context, sourcePath string, result *model.InspectionResult) error {
	rec, err := NewInspectionRecord(sourcePath, result)
	if err != nil {
		return fmt.Errorf("failed to encode inspection result: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save inspection result: %w", err)
	}
	return nil
}

// ListBySource returns the most recent results for a heap source, newest
// first.
func (r *GormInspectionRepository) ListBySource(ctx context.Context, sourcePath string, limit int) ([]*model.InspectionResult, error) {
	var recs []InspectionRecord

	err := r.db.WithContext(ctx).
		Where("source_path = ?", sourcePath).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query inspection results: %w", err)
	}

	results := make([]*model.InspectionResult, len(recs))
	for i := range recs {
		res, err := recs[i].ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to decode inspection result %d: %w", recs[i].ID, err)
		}
		results[i] = res
	}
	return results, nil
}

// CountByStatus returns how many recorded results carry the status.
func (r *GormInspectionRepository) CountByStatus(ctx context.Context, status model.QueryStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&InspectionRecord{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count inspection results: %w", err)
	}
	return count, nil
}

// GormReportRepository implements ReportRepository using GORM.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository.
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// SaveReport stores a full report with its payload serialized to JSON.
func (r *GormReportRepository) SaveReport(ctx context.Context, report *model.Report, storageURL string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	rec := &ReportRecord{
		SourcePath:  report.SourcePath,
		ResultCount: len(report.Results),
		Payload:     payload,
		StorageURL:  storageURL,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently archived report for a source.
func (r *GormReportRepository) LatestReport(ctx context.Context, sourcePath string) (*model.Report, error) {
	var rec ReportRecord

	err := r.db.WithContext(ctx).
		Where("source_path = ?", sourcePath).
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no report found for source: %s", sourcePath)
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	return rec.ToModel()
}
