package imagepool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AddKeepsInsertionOrder(t *testing.T) {
	p := New()

	p.Add("a.jpg")
	p.Add("b.jpg")
	p.Add("c.jpg")

	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, p.Refs())
	assert.Equal(t, 3, p.Len())
}

func TestPool_RemovePreservesOrder(t *testing.T) {
	p := New()

	p.Add("a.jpg")
	b := p.Add("b.jpg")
	p.Add("c.jpg")

	require.NoError(t, p.Remove(b.ID))
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, p.Refs())

	require.ErrorIs(t, p.Remove(b.ID), ErrNotFound)
}

func TestPool_Get(t *testing.T) {
	p := New()
	e := p.Add("a.jpg")

	got, err := p.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got.Ref)

	_, err = p.Get(uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPool_Clear(t *testing.T) {
	p := New()
	p.Add("a.jpg")
	p.Add("b.jpg")

	p.Clear()

	assert.Zero(t, p.Len())
	assert.Empty(t, p.List())
}
