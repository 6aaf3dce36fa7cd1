// Package formatter renders inspection results for human consumption.
package formatter

import (
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

// ResultFormatter is the interface for formatting inspection results.
type ResultFormatter interface {
	// Format outputs the inspection result to the logger.
	Format(res *model.InspectionResult, log utils.Logger)

	// FormatSummary returns a summary map for serialization.
	FormatSummary(res *model.InspectionResult) map[string]interface{}

	// SupportedKinds returns the query kinds this formatter supports.
	SupportedKinds() []model.QueryKind
}

// Registry manages formatter instances keyed by query kind.
type Registry struct {
	formatters map[model.QueryKind]ResultFormatter
	fallback   ResultFormatter
}

// NewRegistry creates a registry with the default formatters registered.
func NewRegistry() *Registry {
	r := &Registry{
		formatters: make(map[model.QueryKind]ResultFormatter),
		fallback:   &DefaultFormatter{},
	}

	r.Register(&GCRootsFormatter{})
	r.Register(&SizeFormatter{})

	return r
}

// Register registers a formatter for each of its supported kinds.
func (r *Registry) Register(f ResultFormatter) {
	for _, k := range f.SupportedKinds() {
		r.formatters[k] = f
	}
}

// Get returns the formatter for a query kind.
func (r *Registry) Get(kind model.QueryKind) ResultFormatter {
	if f, ok := r.formatters[kind]; ok {
		return f
	}
	return r.fallback
}

// Format formats the result using the formatter matching its kind.
func (r *Registry) Format(res *model.InspectionResult, log utils.Logger) {
	if res == nil {
		return
	}
	r.Get(res.Kind).Format(res, log)
}

// FormatSummary returns a summary map using the matching formatter.
func (r *Registry) FormatSummary(res *model.InspectionResult) map[string]interface{} {
	if res == nil {
		return nil
	}
	return r.Get(res.Kind).FormatSummary(res)
}

// FormatReport formats every result of a batch report.
func (r *Registry) FormatReport(report *model.Report, log utils.Logger) {
	if report == nil {
		return
	}
	log.Info("=== Inspection Report ===")
	log.Info("Source:  %s", report.SourcePath)
	log.Info("Results: %d", len(report.Results))
	log.Info("")
	for i := range report.Results {
		r.Format(&report.Results[i], log)
	}
}

// baseSummary holds the fields every formatter reports.
func baseSummary(res *model.InspectionResult) map[string]interface{} {
	summary := map[string]interface{}{
		"object_id":   res.ObjectIDHex(),
		"kind":        string(res.Kind),
		"status":      string(res.Status),
		"duration_ms": res.DurationMS,
	}
	if res.ObjectDesc != "" {
		summary["object_desc"] = res.ObjectDesc
	}
	if res.Error != "" {
		summary["error"] = res.Error
		summary["error_code"] = res.ErrorCode
	}
	return summary
}

// formatFailure prints the error block shared by all formatters. Returns
// true if the result was a failure.
func formatFailure(res *model.InspectionResult, log utils.Logger) bool {
	if res.Status != model.StatusFailed {
		return false
	}
	log.Error("object %s: %s query failed: %s", res.ObjectIDHex(), res.Kind, res.Error)
	if res.ErrorCode != "" {
		log.Error("  code: %s", res.ErrorCode)
	}
	return true
}
