package formatter

import (
	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

// DefaultFormatter is a fallback for unknown query kinds.
type DefaultFormatter struct{}

// SupportedKinds returns nil as this is a fallback formatter.
func (f *DefaultFormatter) SupportedKinds() []model.QueryKind {
	return nil
}

// Format outputs a generic result line to the logger.
func (f *DefaultFormatter) Format(res *model.InspectionResult, log utils.Logger) {
	if formatFailure(res, log) {
		return
	}
	log.Info("=== Result: %s ===", objectLabel(res))
	log.Info("Kind:     %s", res.Kind)
	log.Info("Status:   %s", res.Status)
	log.Info("Duration: %dms", res.DurationMS)
	log.Info("")
}

// FormatSummary returns a summary map for serialization.
func (f *DefaultFormatter) FormatSummary(res *model.InspectionResult) map[string]interface{} {
	return baseSummary(res)
}
