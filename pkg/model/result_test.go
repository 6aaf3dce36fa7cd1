package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootPath_Depth(t *testing.T) {
	p := RootPath{Steps: []PathStep{
		{Kind: "stack local root", Holder: "thread main"},
		{Kind: "instance field", Holder: "com.example.Holder"},
	}}
	assert.Equal(t, 2, p.Depth())
	assert.Zero(t, RootPath{}.Depth())
}

func TestInspectionResult_ObjectIDHex(t *testing.T) {
	r := &InspectionResult{ObjectID: 0xCAFE}
	assert.Equal(t, "0xcafe", r.ObjectIDHex())
}

func TestInspectionResult_JSONOmitsEmpty(t *testing.T) {
	r := InspectionResult{
		ObjectID: 1,
		Kind:     QuerySize,
		Status:   StatusDone,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "paths")
	assert.NotContains(t, string(data), "error")
}

func TestReport_MarshalJSON(t *testing.T) {
	r := Report{
		SourcePath:  "heap.hprof",
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Results: []InspectionResult{
			{ObjectID: 2, Kind: QueryGCRoots, Status: StatusDone},
		},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"generated_at":"2026-03-14T09:30:00Z"`)
	assert.Contains(t, string(data), `"source_path":"heap.hprof"`)
}
