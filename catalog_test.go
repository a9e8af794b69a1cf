package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogPutGetIsCaseInsensitive(t *testing.T) {
	c := NewCatalog(nil)
	c.Put("  Inception (2010) ", "MSG-1")

	loc, ok := c.Get("inception (2010)")
	require.True(t, ok)
	assert.Equal(t, "MSG-1", loc)

	loc, ok = c.Get("INCEPTION (2010)")
	require.True(t, ok)
	assert.Equal(t, "MSG-1", loc)
}

func TestCatalogLastWriteWins(t *testing.T) {
	c := NewCatalog(nil)
	c.Put("Dune (2021)", "OLD")
	c.Put("dune (2021)", "NEW")

	loc, ok := c.Get("Dune (2021)")
	require.True(t, ok)
	assert.Equal(t, "NEW", loc)
	assert.Equal(t, 1, c.Len())
}

func TestCatalogRemove(t *testing.T) {
	c := NewCatalog(nil)
	c.Put("Dune (2021)", "MSG-1")

	assert.True(t, c.Remove("DUNE (2021)"))
	assert.False(t, c.Remove("dune (2021)"))
	_, ok := c.Get("dune (2021)")
	assert.False(t, ok)
}

func TestCatalogKeysAreSorted(t *testing.T) {
	c := NewCatalog(nil)
	c.Put("Zodiac (2007)", "Z")
	c.Put("Arrival (2016)", "A")
	c.Put("Memento (2000)", "M")

	assert.Equal(t, []string{"arrival (2016)", "memento (2000)", "zodiac (2007)"}, c.Keys())
}

func TestCatalogWritesThroughAndReloads(t *testing.T) {
	store := newMemStore()

	c := NewCatalog(store)
	c.Put("Inception (2010)", "MSG-1")
	c.Put("Dune (2021)", "MSG-2")
	assert.Equal(t, 2, store.saveCount())

	// A fresh catalog on the same store sees everything.
	c2 := NewCatalog(store)
	assert.Equal(t, 2, c2.Len())
	loc, ok := c2.Get("dune (2021)")
	require.True(t, ok)
	assert.Equal(t, "MSG-2", loc)
}

func TestCatalogIgnoresEmptyTitle(t *testing.T) {
	c := NewCatalog(nil)
	c.Put("   ", "MSG-1")
	assert.Equal(t, 0, c.Len())
}
