package abacus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutUpsert(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	require.NoError(t, c.Put(person{Name: "Zoe", Age: 31}))
	assert.Equal(t, 4, c.Len())

	// replacing keeps the slot and its position
	require.NoError(t, c.Put(person{Name: "Bob", Age: 21}))
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []string{"Bob", "Eve", "John", "Zoe"}, c.Keys())

	bob, err := c.Fetch(By[string]("initial", "B"))
	require.NoError(t, err)
	assert.Equal(t, 21, bob.Age)
}

func TestPutConflictChangesNothing(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	before := c.List()
	err := c.Put(person{Name: "Jane", Age: 33}) // J is John's
	assert.ErrorIs(t, err, ErrKeyConflict)
	assert.Equal(t, before, c.List())
	assert.False(t, c.Contains(person{Name: "Jane", Age: 33}))

	// replacing a value with itself under the same secondary key is fine
	require.NoError(t, c.Put(person{Name: "John", Age: 46}))
}

func TestPop(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	eve, err := c.Pop(By[string]("initial", "E"))
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Eve", Age: 27}, eve)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(By[string]("initial", "E"))
	assert.False(t, ok, "popping purges the index entry")

	_, err = c.Pop(PK("Eve"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = c.Pop(By[string]("nope", "E"))
	assert.ErrorIs(t, err, ErrIndexUnknown)
}

func TestPopOr(t *testing.T) {
	c := people()
	def := person{Name: "nobody"}

	assert.Equal(t, person{Name: "Bob", Age: 20}, c.PopOr(PK("Bob"), def))
	assert.Equal(t, def, c.PopOr(PK("Bob"), def))
	assert.Equal(t, def, c.PopOr(By[string]("nope", "B"), def))
	assert.Equal(t, 2, c.Len())
}

func TestUpdateMovesKeys(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	err := c.Update(PK("Bob"), func(p person) person {
		p.Name = "Steve"
		return p
	})
	require.NoError(t, err)

	// pop-then-put semantics: the value went to the back
	assert.Equal(t, []string{"Eve", "John", "Steve"}, c.Keys())
	_, ok := c.Get(By[string]("initial", "B"))
	assert.False(t, ok)
	steve, ok := c.Get(By[string]("initial", "S"))
	assert.True(t, ok)
	assert.Equal(t, 20, steve.Age)
}

func TestUpdateConflictKeepsOldValue(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	err := c.Update(PK("Bob"), func(p person) person {
		p.Name = "Jane" // collides with John on J
		return p
	})
	assert.ErrorIs(t, err, ErrKeyConflict)
	assert.Equal(t, []string{"Bob", "Eve", "John"}, c.Keys(), "failed update moves nothing")
	bob, err := c.Fetch(By[string]("initial", "B"))
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Bob", Age: 20}, bob)
}

func TestUpdateDisplacesTakenPrimary(t *testing.T) {
	c := people()

	err := c.Update(PK("Bob"), func(p person) person {
		p.Name = "Eve" // Eve's slot, Eve gets displaced
		return p
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	eve, err := c.Fetch(PK("Eve"))
	require.NoError(t, err)
	assert.Equal(t, 20, eve.Age)
}

func TestUpdateMissing(t *testing.T) {
	c := people()
	err := c.Update(PK("Mallory"), func(p person) person { return p })
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFastUpdateLeavesIndexesAlone(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))
	require.NoError(t, c.CreateIndex("age", func(p person) any { return p.Age }))

	err := c.FastUpdate(PK("Bob"), func(p person) person {
		p.Age = 21 // breaks the contract: age is indexed
		return p
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bob", "Eve", "John"}, c.Keys(), "in place, no reorder")
	bob, err := c.Fetch(By[string]("initial", "B"))
	require.NoError(t, err)
	assert.Equal(t, 21, bob.Age)

	// the age index was not told: the stale secondary key still resolves
	stale, ok := c.Get(By[string]("age", 20))
	assert.True(t, ok)
	assert.Equal(t, 21, stale.Age)
	_, ok = c.Get(By[string]("age", 21))
	assert.False(t, ok)

	err = c.FastUpdate(PK("Mallory"), func(p person) person { return p })
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFetchAndUpdate(t *testing.T) {
	c := people()
	require.NoError(t, c.CreateIndex("initial", initial))

	// read a result out and rewrite the value in one pass
	was, err := FetchAndUpdate(c, PK("Bob"), func(p person) (int, person, bool) {
		was := p.Age
		p.Age++
		return was, p, false
	})
	require.NoError(t, err)
	assert.Equal(t, 20, was)
	bob, _ := c.Get(PK("Bob"))
	assert.Equal(t, 21, bob.Age)

	// the pop signal removes instead of storing
	gone, err := FetchAndUpdate(c, By[string]("initial", "E"), func(p person) (string, person, bool) {
		return p.Name, person{}, true
	})
	require.NoError(t, err)
	assert.Equal(t, "Eve", gone)
	assert.Equal(t, 2, c.Len())

	_, err = FetchAndUpdate(c, PK("Eve"), func(p person) (int, person, bool) {
		return 0, p, false
	})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestGetAndUpdate(t *testing.T) {
	c := people()

	// present: fn sees the value and replaces it
	age, err := GetAndUpdate(c, PK("Bob"), func(p person, ok bool) (int, person, bool) {
		require.True(t, ok)
		p.Age = 30
		return p.Age, p, false
	})
	require.NoError(t, err)
	assert.Equal(t, 30, age)

	// absent: fn sees the zero value and its result gets inserted
	_, err = GetAndUpdate(c, PK("Mallory"), func(p person, ok bool) (int, person, bool) {
		assert.False(t, ok)
		return 0, person{Name: "Mallory", Age: 50}, false
	})
	require.NoError(t, err)
	assert.True(t, c.Contains(person{Name: "Mallory", Age: 50}))

	// unknown index names count as absence here
	_, err = GetAndUpdate(c, By[string]("nope", "x"), func(p person, ok bool) (int, person, bool) {
		assert.False(t, ok)
		return 0, person{Name: "Nadia", Age: 41}, false
	})
	require.NoError(t, err)
	assert.True(t, c.Contains(person{Name: "Nadia", Age: 41}))

	// pop of something absent is a no-op
	before := c.Len()
	_, err = GetAndUpdate(c, PK("Oscar"), func(p person, ok bool) (int, person, bool) {
		return 0, p, true
	})
	require.NoError(t, err)
	assert.Equal(t, before, c.Len())

	// pop of something present removes it
	_, err = GetAndUpdate(c, PK("Mallory"), func(p person, ok bool) (int, person, bool) {
		return 0, p, true
	})
	require.NoError(t, err)
	assert.False(t, c.Contains(person{Name: "Mallory", Age: 50}))
}
