package formatter

import (
	"sort"
	"strings"

	"github.com/jheapagent/pkg/model"
	"github.com/jheapagent/pkg/utils"
)

// GCRootsFormatter renders root-path query results as indented chains,
// one block per discovered root.
type GCRootsFormatter struct{}

// SupportedKinds returns the query kinds this formatter supports.
func (f *GCRootsFormatter) SupportedKinds() []model.QueryKind {
	return []model.QueryKind{model.QueryGCRoots}
}

// Format outputs the root chains to the logger.
func (f *GCRootsFormatter) Format(res *model.InspectionResult, log utils.Logger) {
	if formatFailure(res, log) {
		return
	}

	log.Info("=== GC Roots: %s ===", objectLabel(res))
	log.Info("Found %d path(s) to GC roots in %dms", len(res.Paths), res.DurationMS)

	// Shortest chains first; the discovery order is traversal-dependent.
	paths := make([]model.RootPath, len(res.Paths))
	copy(paths, res.Paths)
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].Depth() < paths[j].Depth()
	})

	for i, p := range paths {
		log.Info("Path %d (depth %d):", i+1, p.Depth())
		for depth, step := range p.Steps {
			log.Info("  %s%s (%s)", strings.Repeat("  ", depth), step.Holder, step.Kind)
		}
	}
	log.Info("")
}

// FormatSummary returns a summary map for serialization.
func (f *GCRootsFormatter) FormatSummary(res *model.InspectionResult) map[string]interface{} {
	summary := baseSummary(res)
	summary["path_count"] = len(res.Paths)

	maxDepth := 0
	rootKinds := make([]string, 0, len(res.Paths))
	for _, p := range res.Paths {
		if p.Depth() > maxDepth {
			maxDepth = p.Depth()
		}
		if len(p.Steps) > 0 {
			rootKinds = append(rootKinds, p.Steps[0].Kind)
		}
	}
	summary["max_depth"] = maxDepth
	summary["root_kinds"] = rootKinds
	return summary
}

func objectLabel(res *model.InspectionResult) string {
	if res.ObjectDesc != "" {
		return res.ObjectDesc + " @ " + res.ObjectIDHex()
	}
	return res.ObjectIDHex()
}
