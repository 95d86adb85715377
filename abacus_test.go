package abacus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Age  int
}

func byName(p person) string { return p.Name }

func initial(p person) any { return p.Name[:1] }

func people() *Collection[string, person] {
	return New(byName,
		person{Name: "Bob", Age: 20},
		person{Name: "Eve", Age: 27},
		person{Name: "John", Age: 45},
	)
}

func TestNewKeepsFirstPositionOnDuplicates(t *testing.T) {
	c := New(byName,
		person{Name: "Bob", Age: 20},
		person{Name: "Eve", Age: 27},
		person{Name: "Bob", Age: 99},
	)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []person{{Name: "Bob", Age: 99}, {Name: "Eve", Age: 27}}, c.List())
}

func TestFetchGetGetOr(t *testing.T) {
	c := people()

	bob, err := c.Fetch(PK("Bob"))
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Bob", Age: 20}, bob)

	_, err = c.Fetch(PK("Mallory"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = c.Fetch(By[string]("initial", "B"))
	assert.ErrorIs(t, err, ErrIndexUnknown)

	_, ok := c.Get(PK("Eve"))
	assert.True(t, ok)
	_, ok = c.Get(PK("Mallory"))
	assert.False(t, ok)
	_, ok = c.Get(By[string]("no-such-index", "B"))
	assert.False(t, ok, "unknown index reads as absence on the tolerant path")

	def := person{Name: "nobody"}
	assert.Equal(t, def, c.GetOr(PK("Mallory"), def))
	assert.Equal(t, person{Name: "John", Age: 45}, c.GetOr(PK("John"), def))
}

func TestListKeysOrder(t *testing.T) {
	c := people()
	assert.Equal(t, []string{"Bob", "Eve", "John"}, c.Keys())
	assert.Equal(t, []person{
		{Name: "Bob", Age: 20},
		{Name: "Eve", Age: 27},
		{Name: "John", Age: 45},
	}, c.List())
	assert.Equal(t, c.Len(), len(c.List()))
}

func TestIteration(t *testing.T) {
	c := people()

	keys := []string{}
	for k, v := range c.All() {
		keys = append(keys, k)
		assert.Equal(t, k, v.Name)
	}
	assert.Equal(t, []string{"Bob", "Eve", "John"}, keys)

	ages := []int{}
	for v := range c.Values() {
		ages = append(ages, v.Age)
	}
	assert.Equal(t, []int{20, 27, 45}, ages)

	// breaking out early must not blow up the sequence
	count := 0
	for range c.Values() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestContains(t *testing.T) {
	c := people()
	assert.True(t, c.Contains(person{Name: "Bob", Age: 20}))
	assert.False(t, c.Contains(person{Name: "Bob", Age: 21}), "same key, different value")
	assert.False(t, c.Contains(person{Name: "Mallory", Age: 20}))
}

func TestPrimaryKey(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))
	require.NoError(t, c.CreateLazyIndex("age", func(p person) any { return p.Age }))

	primary, err := c.PrimaryKey("initial", "J")
	require.NoError(t, err)
	assert.Equal(t, "John", primary)

	_, err = c.PrimaryKey("initial", "Z")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = c.PrimaryKey("age", 27)
	assert.ErrorIs(t, err, ErrLazyIndex)

	_, err = c.PrimaryKey("nope", "J")
	assert.ErrorIs(t, err, ErrIndexUnknown)
}

func TestCloneIsIndependent(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	dup := c.Clone()
	require.NoError(t, c.Put(person{Name: "Zoe", Age: 31}))
	require.NoError(t, c.DropIndex("initial"))

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 3, dup.Len())
	_, ok := dup.Get(By[string]("initial", "E"))
	assert.True(t, ok, "clone keeps its own index tables")

	// and the other way around
	_, err := dup.Pop(PK("Bob"))
	require.NoError(t, err)
	assert.True(t, c.Contains(person{Name: "Bob", Age: 20}))
}

// The walkthrough: a directory of people keyed by name, indexed by first
// letter, updated and de-indexed along the way.
func TestPeopleDirectory(t *testing.T) {
	c := people()

	bob, err := c.Fetch(PK("Bob"))
	require.NoError(t, err)
	assert.Equal(t, 20, bob.Age)

	require.NoError(t, c.CreateIndex("initial", initial))

	john, err := c.Fetch(By[string]("initial", "J"))
	require.NoError(t, err)
	assert.Equal(t, person{Name: "John", Age: 45}, john)

	err = c.Update(By[string]("initial", "B"), func(p person) person {
		p.Name = "Steve"
		return p
	})
	require.NoError(t, err)

	steve, err := c.Fetch(PK("Steve"))
	require.NoError(t, err)
	assert.Equal(t, 20, steve.Age, "the renamed value keeps its payload")

	_, err = c.Fetch(PK("Bob"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, ok := c.Get(By[string]("initial", "B"))
	assert.False(t, ok)
	_, ok = c.Get(By[string]("initial", "S"))
	assert.True(t, ok)

	require.NoError(t, c.DropIndex("initial"))
	_, ok = c.Get(By[string]("initial", "S"))
	assert.False(t, ok)
	_, err = c.Fetch(By[string]("initial", "S"))
	assert.ErrorIs(t, err, ErrIndexUnknown)
}
