package agent

import (
	"fmt"

	"github.com/jheapagent/internal/host"
	apperrors "github.com/jheapagent/pkg/errors"
	"github.com/jheapagent/pkg/utils"
)

// PathStep is one link of a root-to-object reference chain. Kind is the
// category of the reference this step holds toward the next step; Holder
// describes who holds it.
type PathStep struct {
	Kind   host.ReferenceKind
	Holder string
}

// Path is an ordered chain of steps. The first step is always a GC root;
// the last step is the immediate holder of the queried object. A path of
// length one means a root references the object directly.
type Path []PathStep

// RootPathResolver answers "what keeps this object alive": it explores the
// full predecessor set of an object and reconstructs every reference chain
// from a GC root down to it.
type RootPathResolver struct {
	host     host.Host
	walker   *Walker
	maxPaths int
	logger   utils.Logger
}

// NewRootPathResolver creates a resolver. maxPaths bounds how many paths
// are reconstructed; zero means no bound.
func NewRootPathResolver(h host.Host, maxPaths int, logger utils.Logger) *RootPathResolver {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &RootPathResolver{
		host:     h,
		walker:   NewWalker(h, logger),
		maxPaths: maxPaths,
		logger:   logger,
	}
}

// FindRootPaths walks backward from the object over its entire reachable
// predecessor set and returns every discovered root-to-object chain. The
// walk never stops at the first root: an object may be kept alive through
// several independent chains and the caller needs to see all of them.
//
// Returns ObjectNotReachable if no root is found, meaning the object is
// already eligible for collection. Ordering of the returned paths relative
// to each other is unspecified; each path is internally ordered
// root-to-object.
func (r *RootPathResolver) FindRootPaths(obj host.ObjectRef) ([]Path, error) {
	if obj.IsNull() {
		return nil, apperrors.ErrObjectNull
	}

	var paths []Path

	onVisit := func(edge host.Edge, tag *Tag) (VisitResult, error) {
		r.logger.Debug("root search visited %s", Describe(tag))
		return VisitContinue, nil
	}

	onComplete := func(store *TagStore) error {
		var rebuildErr error
		store.Each(func(h Handle, t *Tag) {
			if rebuildErr != nil || len(t.RootEdges) == 0 {
				return
			}
			for _, rootEdge := range t.RootEdges {
				if r.maxPaths > 0 && len(paths) >= r.maxPaths {
					return
				}
				p, err := r.rebuildPath(store, t, rootEdge)
				if err != nil {
					rebuildErr = err
					return
				}
				paths = append(paths, p)
			}
		})
		return rebuildErr
	}

	if err := r.walker.Walk([]host.ObjectRef{obj}, host.ToRoots, onVisit, onComplete); err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeObjectNotReachable,
			fmt.Sprintf("object 0x%x has no path to a GC root", uint64(obj)), nil)
	}
	return paths, nil
}

// rebuildPath reconstructs one root-to-object chain by following the tag
// back-references from the root-reached object down to the traversal seed.
// The back-chain runs toward the target, so the steps come out already in
// root-to-object order.
func (r *RootPathResolver) rebuildPath(store *TagStore, rootReached *Tag, rootEdge host.Edge) (Path, error) {
	path := Path{rootStep(rootEdge)}

	cur := rootReached
	for cur.Referrer != NoHandle {
		path = append(path, PathStep{
			Kind:   cur.Kind,
			Holder: holderDescription(r.host, cur),
		})
		next, err := store.Decode(cur.Referrer)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return path, nil
}

func rootStep(e host.Edge) PathStep {
	holder := e.Detail
	if holder == "" {
		holder = e.Kind.String()
	}
	return PathStep{Kind: e.Kind, Holder: holder}
}

// holderDescription names the object a step belongs to, folding in the
// field or element detail of the reference it holds.
func holderDescription(h host.Host, t *Tag) string {
	desc := h.DescribeObject(t.Object)
	if t.Detail == "" {
		return desc
	}
	switch t.Kind {
	case host.KindArrayElement:
		return fmt.Sprintf("%s[%s]", desc, t.Detail)
	default:
		return fmt.Sprintf("%s.%s", desc, t.Detail)
	}
}
