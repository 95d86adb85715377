package abacus

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCollects(t *testing.T) {
	base := people()
	require.NoError(t, base.CreateIndex("initial", initial))

	b := NewBuilder(base)
	require.NoError(t, b.Add(person{Name: "Zoe", Age: 31}))
	require.NoError(t, b.Add(
		person{Name: "Quinn", Age: 52},
		person{Name: "Rita", Age: 38},
	))

	built, err := b.Close()
	require.NoError(t, err)
	assert.Equal(t, 6, built.Len())
	assert.Equal(t, 3, base.Len(), "the base never changes")

	// indexes came along and kept absorbing
	zoe, err := built.Fetch(By[string]("initial", "Z"))
	require.NoError(t, err)
	assert.Equal(t, 31, zoe.Age)
}

func TestBuilderConflictPoisons(t *testing.T) {
	base := people()
	require.NoError(t, base.CreateIndex("initial", initial))

	b := NewBuilder(base)
	err := b.Add(person{Name: "Jane", Age: 33}) // J is John's
	assert.ErrorIs(t, err, ErrKeyConflict)
	assert.ErrorIs(t, b.Add(person{Name: "Zoe", Age: 31}), ErrKeyConflict)

	_, err = b.Close()
	assert.ErrorIs(t, err, ErrKeyConflict)
	assert.Equal(t, 3, base.Len())
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := NewBuilder(people())
	_, err := b.Close()
	require.NoError(t, err)

	assert.ErrorIs(t, b.Add(person{Name: "Zoe"}), ErrBuilderDone)
	_, err = b.Close()
	assert.ErrorIs(t, err, ErrBuilderDone)

	aborted := NewBuilder(people())
	aborted.Abort()
	assert.ErrorIs(t, aborted.Add(person{Name: "Zoe"}), ErrBuilderDone)
}

func TestCollect(t *testing.T) {
	base := New(byName)
	extra := []person{
		{Name: "Ada", Age: 36},
		{Name: "Grace", Age: 45},
	}

	built, err := Collect(base, slices.Values(extra))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Grace"}, built.Keys())
	assert.Equal(t, 0, base.Len())

	// a conflicting stream aborts cleanly
	require.NoError(t, base.CreateIndex("initial", initial))
	_, err = Collect(base, slices.Values([]person{
		{Name: "Ada", Age: 36},
		{Name: "Alan", Age: 41},
	}))
	assert.ErrorIs(t, err, ErrKeyConflict)
}
