package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/jheapagent/pkg/model"
)

// InspectionRecord represents the inspection_records table: one row per
// answered query.
type InspectionRecord struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SourcePath string    `gorm:"column:source_path;type:varchar(512);index"`
	ObjectID   uint64    `gorm:"column:object_id"`
	ObjectDesc string    `gorm:"column:object_desc;type:varchar(512)"`
	Kind       string    `gorm:"column:kind;type:varchar(16)"`
	Status     string    `gorm:"column:status;type:varchar(16);index"`
	Paths      JSONField `gorm:"column:paths;type:json"`
	SizeBytes  int64     `gorm:"column:size_bytes"`
	Error      string    `gorm:"column:error;type:text"`
	ErrorCode  string    `gorm:"column:error_code;type:varchar(64)"`
	DurationMS int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for InspectionRecord.
func (InspectionRecord) TableName() string {
	return "inspection_records"
}

// ToModel converts InspectionRecord to model.InspectionResult.
func (r *InspectionRecord) ToModel() (*model.InspectionResult, error) {
	result := &model.InspectionResult{
		ObjectID:   r.ObjectID,
		ObjectDesc: r.ObjectDesc,
		Kind:       model.QueryKind(r.Kind),
		Status:     model.QueryStatus(r.Status),
		SizeBytes:  r.SizeBytes,
		Error:      r.Error,
		ErrorCode:  r.ErrorCode,
		DurationMS: r.DurationMS,
	}

	if r.Paths != nil {
		if err := json.Unmarshal(r.Paths, &result.Paths); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// NewInspectionRecord converts a model.InspectionResult to its table row.
func NewInspectionRecord(sourcePath string, result *model.InspectionResult) (*InspectionRecord, error) {
	rec := &InspectionRecord{
		SourcePath: sourcePath,
		ObjectID:   result.ObjectID,
		ObjectDesc: result.ObjectDesc,
		Kind:       string(result.Kind),
		Status:     string(result.Status),
		SizeBytes:  result.SizeBytes,
		Error:      result.Error,
		ErrorCode:  result.ErrorCode,
		DurationMS: result.DurationMS,
	}

	if len(result.Paths) > 0 {
		paths, err := json.Marshal(result.Paths)
		if err != nil {
			return nil, err
		}
		rec.Paths = paths
	}

	return rec, nil
}

// ReportRecord represents the inspection_reports table: one row per
// archived batch report.
type ReportRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SourcePath  string    `gorm:"column:source_path;type:varchar(512);index"`
	ResultCount int       `gorm:"column:result_count"`
	Payload     JSONField `gorm:"column:payload;type:json"`
	StorageURL  string    `gorm:"column:storage_url;type:varchar(1024)"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for ReportRecord.
func (ReportRecord) TableName() string {
	return "inspection_reports"
}

// ToModel converts ReportRecord back to model.Report.
func (r *ReportRecord) ToModel() (*model.Report, error) {
	var report model.Report
	if r.Payload != nil {
		if err := json.Unmarshal(r.Payload, &report); err != nil {
			return nil, err
		}
	}
	return &report, nil
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
