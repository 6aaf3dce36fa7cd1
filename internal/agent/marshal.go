package agent

import "github.com/jheapagent/pkg/model"

// MarshalPaths converts native traversal paths into the shapes callers
// consume. Pure transformation: step order within each path is preserved
// exactly as reconstructed.
func MarshalPaths(paths []Path) []model.RootPath {
	out := make([]model.RootPath, 0, len(paths))
	for _, p := range paths {
		steps := make([]model.PathStep, 0, len(p))
		for _, s := range p {
			steps = append(steps, model.PathStep{
				Kind:   s.Kind.String(),
				Holder: s.Holder,
			})
		}
		out = append(out, model.RootPath{Steps: steps})
	}
	return out
}
