package agent

import (
	"errors"
	"fmt"

	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/pkg/collections"
	apperrors "github.com/jheapagent/pkg/errors"
	"github.com/jheapagent/pkg/utils"
)

// VisitResult tells the walker whether to keep going after a visit.
type VisitResult int

const (
	// VisitContinue keeps the walk running.
	VisitContinue VisitResult = iota
	// VisitStop terminates the walk early without error.
	VisitStop
)

// VisitFunc is invoked once per newly discovered object, with the edge that
// discovered it and its freshly allocated Tag. The Tag is owned by the
// walker and must not be retained beyond the walk.
type VisitFunc func(edge host.Edge, tag *Tag) (VisitResult, error)

// CompleteFunc runs after the queue drains successfully, while all tags are
// still live, so callers can read back accumulated per-object state before
// the walker releases everything.
type CompleteFunc func(store *TagStore) error

// queueEntry pairs a pending object with the handle of its tag, so edge
// discovery can record the referrer without a slot read-back.
type queueEntry struct {
	obj    host.ObjectRef
	handle Handle
}

var queuePool = collections.NewSlicePool[queueEntry](1024)

// Walker drives the host's reference-enumeration primitive over the object
// graph, visiting each object at most once per traversal. The host
// serializes callback delivery within one traversal, so the walker itself
// takes no locks.
type Walker struct {
	host   host.Host
	logger utils.Logger
}

// NewWalker creates a Walker over the given host. A nil logger disables
// debug output.
func NewWalker(h host.Host, logger utils.Logger) *Walker {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Walker{host: h, logger: logger}
}

// errStopWalk propagates a VisitStop out of the enumeration callback.
var errStopWalk = errors.New("walk stopped by visitor")

// Walk runs a breadth-first traversal from the seeds in the given
// direction. Traversal state lives in Tag records addressed through the
// host's tag slots; an object is enqueued only if its slot is unset, which
// is the sole deduplication mechanism. The walk is iterative with an
// explicit queue, never recursive, because reference-graph depth in real
// heaps exceeds any reasonable call-stack budget.
//
// Every Tag allocated during the walk is released, and every written tag
// slot cleared, before Walk returns, on success, early stop, and error
// alike.
func (w *Walker) Walk(seeds []host.ObjectRef, dir host.Direction, onVisit VisitFunc, onComplete CompleteFunc) error {
	store := NewTagStore()

	queuePtr := queuePool.Get()
	queue := *queuePtr
	defer func() {
		*queuePtr = queue
		queuePool.Put(queuePtr)
	}()

	// Objects whose slot we wrote, for restoration on exit.
	taggedPtr := queuePool.Get()
	tagged := *taggedPtr
	defer func() {
		*taggedPtr = tagged
		queuePool.Put(taggedPtr)
	}()

	defer func() {
		for _, entry := range tagged {
			if err := w.host.SetTagOf(entry.obj, 0); err != nil {
				w.logger.Warn("failed to clear tag slot of object 0x%x: %v", uint64(entry.obj), err)
			}
		}
		if released := store.ReleaseAll(); released > 0 {
			w.logger.Debug("walk released %d tags", released)
		}
	}()

	// discover tags one object, delivers the visit, and returns the queue
	// entry for it. A nil entry means the object was already tagged.
	discover := func(edge host.Edge, obj host.ObjectRef, referrer Handle) (*queueEntry, error) {
		slot, err := w.host.TagOf(obj)
		if err != nil {
			return nil, wrapHostError("TagOf", err)
		}
		if slot != 0 {
			return nil, nil
		}
		h, t := store.Allocate()
		t.Object = obj
		t.Kind = edge.Kind
		t.Detail = edge.Detail
		t.Referrer = referrer
		if err := w.host.SetTagOf(obj, int64(h)); err != nil {
			return nil, wrapHostError("SetTagOf", err)
		}
		tagged = append(tagged, queueEntry{obj: obj})
		res, err := onVisit(edge, t)
		if err != nil {
			return nil, err
		}
		if res == VisitStop {
			return nil, errStopWalk
		}
		return &queueEntry{obj: obj, handle: h}, nil
	}

	for _, seed := range seeds {
		if seed.IsNull() {
			return apperrors.New(apperrors.CodeObjectNull, "traversal seed is null")
		}
		entry, err := discover(host.Edge{Referee: seed}, seed, NoHandle)
		if err != nil {
			if errors.Is(err, errStopWalk) {
				return nil
			}
			return err
		}
		if entry != nil {
			queue = append(queue, *entry)
		}
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		tag, err := store.Decode(cur.handle)
		if err != nil {
			return err
		}
		tag.Visited = true

		err = w.host.References(cur.obj, dir, func(e host.Edge) error {
			if dir == host.ToRoots && e.Kind.IsRoot() {
				// A root holds the current object directly; record it on
				// the object's own tag. No new object is discovered.
				tag.RootEdges = append(tag.RootEdges, e)
				return nil
			}
			next := e.Referee
			if dir == host.ToRoots {
				next = e.Referrer
			}
			if next.IsNull() {
				return nil
			}
			entry, err := discover(e, next, cur.handle)
			if err != nil {
				return err
			}
			if entry != nil {
				queue = append(queue, *entry)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, errStopWalk) {
				return nil
			}
			var statusErr *host.StatusError
			if errors.As(err, &statusErr) {
				return wrapHostError("References", err)
			}
			return err
		}
	}

	if onComplete != nil {
		return onComplete(store)
	}
	return nil
}

func wrapHostError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeHostAPIError, fmt.Sprintf("%s failed", op), err)
}
