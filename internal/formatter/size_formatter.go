package formatter

import (
	"fmt"

	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

// SizeFormatter renders retained-size query results.
type SizeFormatter struct{}

// SupportedKinds returns the query kinds this formatter supports.
func (f *SizeFormatter) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.QuerySize}
}

// Format outputs the size to the logger.
func (f *SizeFormatter) Format(res *model.InspectionResult, log utils.Logger) {
	if formatFailure(res, log) {
		return
	}

	log.Info("=== Retained Size: %s ===", objectLabel(res))
	log.Info("%d bytes (%s) in %dms", res.SizeBytes, humanBytes(res.SizeBytes), res.DurationMS)
	log.Info("")
}

// FormatSummary returns a summary map for serialization.
func (f *SizeFormatter) FormatSummary(res *model.InspectionResult) map[string]interface{} {
	summary := baseSummary(res)
	summary["size_bytes"] = res.SizeBytes
	summary["size_human"] = humanBytes(res.SizeBytes)
	return summary
}

// humanBytes formats a byte count with a binary unit suffix.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
