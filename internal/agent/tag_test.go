package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheapagent/internal/host"
	apperrors "github.com/jheapagent/pkg/errors"
)

func TestTagStore_AllocateDecodeRelease(t *testing.T) {
	s := NewTagStore()
	before := LiveTags()

	h, tag := s.Allocate()
	require.NotEqual(t, NoHandle, h)
	tag.Object = 42
	tag.Kind = host.KindField

	decoded, err := s.Decode(h)
	require.NoError(t, err)
	assert.Same(t, tag, decoded)
	assert.Equal(t, 1, s.Live())
	assert.Equal(t, before+1, LiveTags())

	require.NoError(t, s.Release(h))
	assert.Zero(t, s.Live())
	assert.Equal(t, before, LiveTags())
}

func TestTagStore_DecodeZeroHandle(t *testing.T) {
	s := NewTagStore()
	_, err := s.Decode(NoHandle)
	assert.True(t, apperrors.IsInvalidHandle(err))
}

func TestTagStore_DecodeReleasedHandle(t *testing.T) {
	s := NewTagStore()
	h, _ := s.Allocate()
	require.NoError(t, s.Release(h))

	_, err := s.Decode(h)
	assert.True(t, apperrors.IsInvalidHandle(err))

	// Double release is rejected too.
	assert.True(t, apperrors.IsInvalidHandle(s.Release(h)))
}

func TestTagStore_HandlesNeverCrossStores(t *testing.T) {
	s1 := NewTagStore()
	s2 := NewTagStore()
	defer s1.ReleaseAll()
	defer s2.ReleaseAll()
	h1, _ := s1.Allocate()
	s2.Allocate()

	// A handle from one traversal's store never decodes against another,
	// even when the arena index exists in both.
	_, err := s2.Decode(h1)
	assert.True(t, apperrors.IsInvalidHandle(err))
}

func TestTagStore_ReleaseAll(t *testing.T) {
	s := NewTagStore()
	before := LiveTags()
	for i := 0; i < 10; i++ {
		s.Allocate()
	}
	h, _ := s.Allocate()
	require.NoError(t, s.Release(h))

	assert.Equal(t, 10, s.ReleaseAll())
	assert.Zero(t, s.Live())
	assert.Equal(t, before, LiveTags())
	assert.Zero(t, s.ReleaseAll())
}

func TestTagStore_Each(t *testing.T) {
	s := NewTagStore()
	defer s.ReleaseAll()

	var objects []host.ObjectRef
	for i := 1; i <= 3; i++ {
		_, tag := s.Allocate()
		tag.Object = host.ObjectRef(i)
	}

	s.Each(func(h Handle, tag *Tag) {
		decoded, err := s.Decode(h)
		require.NoError(t, err)
		assert.Same(t, tag, decoded)
		objects = append(objects, tag.Object)
	})
	assert.Equal(t, []host.ObjectRef{1, 2, 3}, objects)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "<nil tag>", Describe(nil))

	tag := &Tag{
		Object:   0xAB,
		Kind:     host.KindField,
		Detail:   "next",
		Referrer: Handle(123),
		Visited:  true,
	}
	desc := Describe(tag)
	assert.Contains(t, desc, "0xab")
	assert.Contains(t, desc, "instance field")
	assert.Contains(t, desc, "next")
	assert.Contains(t, desc, "has referrer")
	assert.Contains(t, desc, "visited")

	seed := &Tag{Object: 1, RootEdges: []host.Edge{{Kind: host.KindRootThread}}}
	desc = Describe(seed)
	assert.Contains(t, desc, "seed")
	assert.Contains(t, desc, "1 root edge(s)")
}
