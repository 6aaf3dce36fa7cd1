package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/pkg/compression"
	apperrors "github.com/jheapagent/pkg/errors"
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

var tracer = otel.Tracer("github.com/jheapagent/internal/service")

// QueryRequest names one diagnostic question about one object.
type QueryRequest struct {
	Object host.ObjectRef
	Kind   model.QueryKind
}

// BuildRequests expands a set of target objects into one request per
// object per query kind, objects outermost.
func BuildRequests(objects []host.ObjectRef, kinds ...model.QueryKind) []QueryRequest {
	reqs := make([]QueryRequest, 0, len(objects)*len(kinds))
	for _, obj := range objects {
		for _, kind := range kinds {
			reqs = append(reqs, QueryRequest{Object: obj, Kind: kind})
		}
	}
	return reqs
}

// ResolveTargets turns a target selector into object references. A selector
// is either a single object ID ("0x3f2a" or decimal) or a class name, which
// selects every instance of that class in the attached dump.
func (s *Service) ResolveTargets(selector string) ([]host.ObjectRef, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "empty target selector")
	}

	if strings.HasPrefix(selector, "0x") || strings.HasPrefix(selector, "0X") {
		id, err := strconv.ParseUint(selector[2:], 16, 64)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid object ID", err)
		}
		return []host.ObjectRef{host.ObjectRef(id)}, nil
	}
	if id, err := strconv.ParseUint(selector, 10, 64); err == nil {
		return []host.ObjectRef{host.ObjectRef(id)}, nil
	}

	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput,
			"class name selectors require a parsed heap dump")
	}

	instances := snap.InstancesOf(selector)
	if len(instances) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("no instances of %s in heap dump", selector))
	}
	return instances, nil
}

// Inspect answers one query about one object. Failures are folded into the
// result rather than returned: the caller always gets a result to record
// and render.
func (s *Service) Inspect(ctx context.Context, req QueryRequest) *model.InspectionResult {
	ctx, span := tracer.Start(ctx, "service.Inspect",
		trace.WithAttributes(
			attribute.String("inspect.object_id", fmt.Sprintf("0x%x", uint64(req.Object))),
			attribute.String("inspect.kind", string(req.Kind)),
		))
	defer span.End()

	res := s.runQuery(ctx, req)
	if res.Status == model.StatusFailed {
		span.RecordError(fmt.Errorf("%s: %s", res.ErrorCode, res.Error))
	}
	span.SetAttributes(attribute.String("inspect.status", string(res.Status)))

	s.persistResult(ctx, res)
	return res
}

// runQuery executes the query against the engine and builds the result.
func (s *Service) runQuery(ctx context.Context, req QueryRequest) *model.InspectionResult {
	res := &model.InspectionResult{
		ObjectID: uint64(req.Object),
		Kind:     req.Kind,
		Status:   model.StatusRunning,
	}
	start := time.Now()

	var err error
	if err = ctx.Err(); err == nil {
		switch req.Kind {
		case model.QueryGCRoots:
			res.Paths, err = s.agent.GcRoots(req.Object)
		case model.QuerySize:
			res.SizeBytes, err = s.agent.Size(req.Object)
		default:
			err = apperrors.New(apperrors.CodeInvalidInput,
				fmt.Sprintf("unknown query kind: %s", req.Kind))
		}
	}
	res.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Status = model.StatusFailed
		res.Error = err.Error()
		res.ErrorCode = apperrors.GetErrorCode(err)
		return res
	}

	res.Status = model.StatusDone
	res.ObjectDesc = s.describeObject(req.Object)
	return res
}

// persistResult appends the result to the audit log when a database is
// configured. Persistence failures are logged, never surfaced: the query
// answer matters more than the audit trail.
func (s *Service) persistResult(ctx context.Context, res *model.InspectionResult) {
	if s.db == nil {
		return
	}
	if err := s.db.Inspection.SaveResult(ctx, s.SourcePath(), res); err != nil {
		s.logger.Warn("Failed to persist inspection result for %s: %v", res.ObjectIDHex(), err)
	}
}

func (s *Service) describeObject(obj host.ObjectRef) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.heap == nil {
		return ""
	}
	return s.heap.DescribeObject(obj)
}

// InspectBatch answers every request and bundles the outcomes into a
// report. Requests fan out across the worker pool; the engine serializes
// the traversals themselves. The report is archived afterwards when a
// database or storage backend is configured.
func (s *Service) InspectBatch(ctx context.Context, reqs []QueryRequest) (*model.Report, error) {
	if !s.IsAttached() {
		return nil, apperrors.ErrAgentNotInitialized
	}
	if len(reqs) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "no inspection requests")
	}

	ctx, span := tracer.Start(ctx, "service.InspectBatch",
		trace.WithAttributes(attribute.Int("inspect.requests", len(reqs))))
	defer span.End()

	timer := utils.NewTimer("batch inspection")
	s.logger.Info("Running %d inspection queries...", len(reqs))

	timer.StartPhase("inspect")
	outcomes := s.newPool().ExecuteFunc(ctx, reqs,
		func(ctx context.Context, req QueryRequest) (*model.InspectionResult, error) {
			return s.Inspect(ctx, req), nil
		})
	timer.StopPhase("inspect")

	report := &model.Report{
		SourcePath:  s.SourcePath(),
		GeneratedAt: time.Now(),
		Results:     make([]model.InspectionResult, 0, len(outcomes)),
	}
	failed := 0
	for _, outcome := range outcomes {
		res := outcome.Result
		if res == nil {
			// The pool only leaves Result nil when the context died
			// before the task ran.
			res = s.runQuery(ctx, outcome.Input)
		}
		if res.Status == model.StatusFailed {
			failed++
		}
		report.Results = append(report.Results, *res)
	}

	timer.StartPhase("archive")
	storageURL := s.uploadReport(ctx, report)
	s.archiveReport(ctx, report, storageURL)
	timer.StopPhase("archive")

	timer.Report(s.logger)
	s.logger.Info("Batch inspection finished: %d queries, %d failed", len(reqs), failed)
	return report, nil
}

// uploadReport renders the report as JSON, applies the configured
// compression codec, and uploads the artifact to the storage backend,
// returning its URL. Returns empty when storage is not configured or the
// upload fails.
func (s *Service) uploadReport(ctx context.Context, report *model.Report) string {
	if s.storage == nil {
		return ""
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		s.logger.Warn("Failed to render report: %v", err)
		return ""
	}

	key := reportKey(report)
	codec, err := compression.ByName(s.config.Storage.Compression)
	if err != nil {
		s.logger.Warn("Invalid report compression config: %v", err)
	} else if codec.Extension() != "" {
		if compressed, cerr := codec.Compress(data); cerr != nil {
			s.logger.Warn("Failed to compress report: %v", cerr)
		} else {
			data = compressed
			key += codec.Extension()
		}
	}

	if err := s.storage.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		s.logger.Warn("Failed to upload report: %v", err)
		return ""
	}

	url := s.storage.GetURL(key)
	s.logger.Info("Report uploaded to %s", url)
	return url
}

// archiveReport records the report in the database when one is configured.
func (s *Service) archiveReport(ctx context.Context, report *model.Report, storageURL string) {
	if s.db == nil {
		return
	}
	if err := s.db.Report.SaveReport(ctx, report, storageURL); err != nil {
		s.logger.Warn("Failed to archive report: %v", err)
	}
}

// reportKey builds the storage key for a report artifact.
func reportKey(report *model.Report) string {
	base := filepath.Base(report.SourcePath)
	if base == "." || base == "/" || base == "" {
		base = "heap"
	}
	return fmt.Sprintf("reports/%s-%s.json",
		base, report.GeneratedAt.UTC().Format("20060102T150405Z"))
}
