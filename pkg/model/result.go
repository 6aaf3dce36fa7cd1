// Package model defines the shared data types exchanged between the engine,
// the service layer, persistence, and formatting.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueryKind identifies which diagnostic question was asked about an object.
type QueryKind string

const (
	// QueryGCRoots asks which reference chains keep the object alive.
	QueryGCRoots QueryKind = "gc_roots"
	// QuerySize asks how many bytes of heap the object retains.
	QuerySize QueryKind = "size"
)

// QueryStatus is the lifecycle state of an inspection query.
type QueryStatus string

const (
	StatusPending QueryStatus = "pending"
	StatusRunning QueryStatus = "running"
	StatusDone    QueryStatus = "done"
	StatusFailed  QueryStatus = "failed"
)

// PathStep is one step in a root-to-object reference chain. Kind names the
// reference category ("stack local root", "instance field", ...); Holder
// describes who holds the reference (root detail or holder object).
type PathStep struct {
	Kind   string `json:"kind"`
	Holder string `json:"holder"`
}

// RootPath is an ordered reference chain. The first step is the GC root,
// the last step is the immediate holder of the queried object. A path of
// length one means the root holds the object directly.
type RootPath struct {
	Steps []PathStep `json:"steps"`
}

// Depth returns the number of steps in the path.
func (p RootPath) Depth() int { return len(p.Steps) }

// InspectionResult is the outcome of one query against one object.
type InspectionResult struct {
	ObjectID   uint64      `json:"object_id"`
	ObjectDesc string      `json:"object_desc,omitempty"`
	Kind       QueryKind   `json:"kind"`
	Status     QueryStatus `json:"status"`
	Paths      []RootPath  `json:"paths,omitempty"`
	SizeBytes  int64       `json:"size_bytes,omitempty"`
	Error      string      `json:"error,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// ObjectIDHex returns the object ID formatted the way the CLI accepts it.
func (r *InspectionResult) ObjectIDHex() string {
	return fmt.Sprintf("0x%x", r.ObjectID)
}

// Report bundles the results of a batch inspection over one heap source.
type Report struct {
	SourcePath  string             `json:"source_path"`
	GeneratedAt time.Time          `json:"generated_at"`
	Results     []InspectionResult `json:"results"`
}

// MarshalJSON renders the report with a stable timestamp format.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		alias
		GeneratedAt string `json:"generated_at"`
	}{
		alias:       alias(r),
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
