package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheapagent/internal/host"
)

func TestMarshalPaths_PreservesOrder(t *testing.T) {
	paths := []Path{
		{
			{Kind: host.KindRootJavaFrame, Holder: "thread main"},
			{Kind: host.KindField, Holder: "Holder.f"},
		},
		{
			{Kind: host.KindRootJNIGlobal, Holder: "jni"},
		},
	}

	out := MarshalPaths(paths)
	require.Len(t, out, 2)

	require.Len(t, out[0].Steps, 2)
	assert.Equal(t, "stack local root", out[0].Steps[0].Kind)
	assert.Equal(t, "thread main", out[0].Steps[0].Holder)
	assert.Equal(t, "instance field", out[0].Steps[1].Kind)

	require.Len(t, out[1].Steps, 1)
	assert.Equal(t, "JNI global root", out[1].Steps[0].Kind)
}

func TestMarshalPaths_Empty(t *testing.T) {
	assert.Empty(t, MarshalPaths(nil))
	assert.Empty(t, MarshalPaths([]Path{}))
}
