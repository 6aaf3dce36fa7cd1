package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlicePool(t *testing.T) {
	p := NewSlicePool[uint64](16)

	s := p.Get()
	*s = append(*s, 1, 2, 3)
	p.Put(s)

	s2 := p.Get()
	assert.Empty(t, *s2)
	p.Put(s2)
}

func TestMapPool(t *testing.T) {
	p := NewMapPool[uint64, bool](16)

	m := p.Get()
	m[7] = true
	p.Put(m)

	m2 := p.Get()
	assert.Empty(t, m2)
	p.Put(m2)
}
