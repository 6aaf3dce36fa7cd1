// Package mock provides mock implementations for testing.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jheapagent/pkg/model"
)

// MockInspectionRepository is a mock implementation of the
// repository.InspectionRepository interface.
type MockInspectionRepository struct {
	mock.Mock
}

// SaveResult mocks the SaveResult method.
func (m *MockInspectionRepository) SaveResult(ctx context.Context, sourcePath string, result *model.InspectionResult) error {
	args := m.Called(ctx, sourcePath, result)
	return args.Error(0)
}

// ListBySource mocks the ListBySource method.
func (m *MockInspectionRepository) ListBySource(ctx context.Context, sourcePath string, limit int) ([]*model.InspectionResult, error) {
	args := m.Called(ctx, sourcePath, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InspectionResult), args.Error(1)
}

// CountByStatus mocks the CountByStatus method.
func (m *MockInspectionRepository) CountByStatus(ctx context.Context, status model.QueryStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

// ExpectSaveResult sets up an expectation for SaveResult.
func (m *MockInspectionRepository) ExpectSaveResult(err error) *mock.Call {
	return m.On("SaveResult", mock.Anything, mock.Anything, mock.Anything).Return(err)
}

// MockReportRepository is a mock implementation of the
// repository.ReportRepository interface.
type MockReportRepository struct {
	mock.Mock
}

// SaveReport mocks the SaveReport method.
func (m *MockReportRepository) SaveReport(ctx context.Context, report *model.Report, storageURL string) error {
	args := m.Called(ctx, report, storageURL)
	return args.Error(0)
}

// LatestReport mocks the LatestReport method.
func (m *MockReportRepository) LatestReport(ctx context.Context, sourcePath string) (*model.Report, error) {
	args := m.Called(ctx, sourcePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

// ExpectSaveReport sets up an expectation for SaveReport.
func (m *MockReportRepository) ExpectSaveReport(err error) *mock.Call {
	return m.On("SaveReport", mock.Anything, mock.Anything, mock.Anything).Return(err)
}
