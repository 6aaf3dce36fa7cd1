package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/internal/host/memhost"
	appmock "github.com/jheapagent/internal/mock"
	"github.com/jheapagent/internal/repository"
	"github.com/jheapagent/pkg/config"
	apperrors "github.com/jheapagent/pkg/errors"
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

const (
	refHolder host.ObjectRef = 0x100
	refConn   host.ObjectRef = 0x200
	refBuffer host.ObjectRef = 0x300
)

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{MaxPaths: 10, WorkerCount: 2},
		Log:   config.LogConfig{Level: "error"},
	}
}

// buildHeap wires a stack frame root to a holder that keeps a connection
// and a buffer alive.
func buildHeap() *memhost.Heap {
	h := memhost.NewHeap()
	h.AddObject(refHolder, 32, "com.example.ConnHolder")
	h.AddObject(refConn, 24, "com.example.Conn")
	h.AddObject(refBuffer, 64, "byte[]{64}")
	h.AddRoot(refHolder, host.KindRootJavaFrame, "thread 1, frame 0")
	h.AddReference(refHolder, refConn, host.KindField, "conn")
	h.AddReference(refHolder, refBuffer, host.KindField, "buf")
	return h
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(testConfig(), &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.AttachHost(buildHeap(), "/dumps/test.hprof"))
	return svc
}

func TestService_InspectGCRoots(t *testing.T) {
	svc := newTestService(t)

	res := svc.Inspect(context.Background(), QueryRequest{Object: refConn, Kind: model.QueryGCRoots})

	assert.Equal(t, model.StatusDone, res.Status)
	assert.Equal(t, "com.example.Conn", res.ObjectDesc)
	require.Len(t, res.Paths, 1)
	require.Equal(t, 2, res.Paths[0].Depth())
	assert.Equal(t, "thread 1, frame 0", res.Paths[0].Steps[0].Holder)
	assert.Equal(t, "instance field", res.Paths[0].Steps[1].Kind)
}

func TestService_InspectSize(t *testing.T) {
	svc := newTestService(t)

	res := svc.Inspect(context.Background(), QueryRequest{Object: refHolder, Kind: model.QuerySize})

	assert.Equal(t, model.StatusDone, res.Status)
	assert.Equal(t, int64(32+24+64), res.SizeBytes)
	assert.Empty(t, res.Paths)
}

func TestService_InspectUnknownObject(t *testing.T) {
	svc := newTestService(t)

	res := svc.Inspect(context.Background(), QueryRequest{Object: 0xdead, Kind: model.QuerySize})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, apperrors.CodeHostAPIError, res.ErrorCode)
	assert.NotEmpty(t, res.Error)
}

func TestService_InspectUnknownKind(t *testing.T) {
	svc := newTestService(t)

	res := svc.Inspect(context.Background(), QueryRequest{Object: refConn, Kind: "histogram"})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, apperrors.CodeInvalidInput, res.ErrorCode)
}

func TestService_InspectPersistsResult(t *testing.T) {
	svc := newTestService(t)

	inspections := &appmock.MockInspectionRepository{}
	inspections.ExpectSaveResult(nil)
	svc.db = &repository.Repositories{Inspection: inspections}

	svc.Inspect(context.Background(), QueryRequest{Object: refConn, Kind: model.QuerySize})

	inspections.AssertCalled(t, "SaveResult",
		mock.Anything, "/dumps/test.hprof", mock.Anything)
}

func TestService_ResolveTargets(t *testing.T) {
	svc := newTestService(t)

	refs, err := svc.ResolveTargets("0x200")
	require.NoError(t, err)
	assert.Equal(t, []host.ObjectRef{refConn}, refs)

	refs, err = svc.ResolveTargets("512")
	require.NoError(t, err)
	assert.Equal(t, []host.ObjectRef{refConn}, refs)

	_, err = svc.ResolveTargets("")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))

	_, err = svc.ResolveTargets("0xzz")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))

	// Class name selectors need a parsed dump; the in-memory heap has none.
	_, err = svc.ResolveTargets("com.example.Conn")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestService_InspectBatch(t *testing.T) {
	svc := newTestService(t)

	inspections := &appmock.MockInspectionRepository{}
	inspections.ExpectSaveResult(nil)
	reports := &appmock.MockReportRepository{}
	reports.ExpectSaveReport(nil)
	svc.db = &repository.Repositories{Inspection: inspections, Report: reports}

	store := &appmock.MockStorage{}
	store.ExpectUpload(nil)
	store.ExpectGetURL("https://bucket.example.com/reports/test.json")
	svc.storage = store

	reqs := BuildRequests([]host.ObjectRef{refHolder, refConn}, model.QueryGCRoots, model.QuerySize)
	require.Len(t, reqs, 4)

	report, err := svc.InspectBatch(context.Background(), reqs)
	require.NoError(t, err)

	assert.Equal(t, "/dumps/test.hprof", report.SourcePath)
	require.Len(t, report.Results, 4)
	for _, res := range report.Results {
		assert.Equal(t, model.StatusDone, res.Status)
	}
	// Results come back in request order.
	assert.Equal(t, uint64(refHolder), report.Results[0].ObjectID)
	assert.Equal(t, model.QueryGCRoots, report.Results[0].Kind)
	assert.Equal(t, uint64(refConn), report.Results[3].ObjectID)
	assert.Equal(t, model.QuerySize, report.Results[3].Kind)

	inspections.AssertNumberOfCalls(t, "SaveResult", 4)
	reports.AssertCalled(t, "SaveReport",
		mock.Anything, mock.Anything, "https://bucket.example.com/reports/test.json")
	store.AssertCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_InspectBatch_NotAttached(t *testing.T) {
	svc, err := New(testConfig(), &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))

	_, err = svc.InspectBatch(context.Background(), BuildRequests(
		[]host.ObjectRef{refConn}, model.QuerySize))
	assert.ErrorIs(t, err, apperrors.ErrAgentNotInitialized)
}

func TestService_InspectBatch_NoRequests(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.InspectBatch(context.Background(), nil)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestService_UploadReportCompressed(t *testing.T) {
	svc := newTestService(t)
	svc.config.Storage.Compression = "zstd"

	store := &appmock.MockStorage{}
	store.ExpectUpload(nil)
	store.ExpectGetURL("https://bucket.example.com/reports/test.json.zst")
	svc.storage = store

	_, err := svc.InspectBatch(context.Background(),
		BuildRequests([]host.ObjectRef{refConn}, model.QuerySize))
	require.NoError(t, err)

	store.AssertCalled(t, "Upload", mock.Anything,
		mock.MatchedBy(func(key string) bool {
			return strings.HasSuffix(key, ".json.zst")
		}), mock.Anything)
}

func TestService_UploadFailureDoesNotFailBatch(t *testing.T) {
	svc := newTestService(t)

	store := &appmock.MockStorage{}
	store.ExpectUpload(assert.AnError)
	svc.storage = store

	report, err := svc.InspectBatch(context.Background(),
		BuildRequests([]host.ObjectRef{refConn}, model.QuerySize))
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	store.AssertNotCalled(t, "GetURL", mock.Anything)
}

func TestService_Lifecycle(t *testing.T) {
	svc := newTestService(t)

	assert.True(t, svc.IsAttached())
	assert.Equal(t, "/dumps/test.hprof", svc.SourcePath())

	stats := svc.Stats()
	assert.True(t, stats.Attached)
	assert.Equal(t, "/dumps/test.hprof", stats.SourcePath)

	require.NoError(t, svc.HealthCheck(context.Background()))
	require.NoError(t, svc.Close())

	assert.False(t, svc.IsAttached())
	assert.Empty(t, svc.SourcePath())
}

func TestService_OpenDumpMissingFile(t *testing.T) {
	svc, err := New(testConfig(), &utils.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))

	assert.Error(t, svc.OpenDump("/nonexistent/heap.hprof"))
}

func TestReportKey(t *testing.T) {
	report := &model.Report{SourcePath: "/dumps/app.hprof"}
	key := reportKey(report)
	assert.Contains(t, key, "reports/app.hprof-")
	assert.Contains(t, key, ".json")
}
