package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got sample
	require.ErrorIs(t, m.Get(ctx, "k", &got), ErrMiss)

	require.NoError(t, m.Set(ctx, "k", sample{Name: "fern", Count: 3}, 0))
	require.NoError(t, m.Get(ctx, "k", &got))
	assert.Equal(t, sample{Name: "fern", Count: 3}, got)

	require.NoError(t, m.Delete(ctx, "k", "missing"))
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	require.NoError(t, m.Set(ctx, "k", sample{Name: "cactus"}, time.Minute))

	m.now = func() time.Time { return base.Add(59 * time.Second) }
	var got sample
	require.NoError(t, m.Get(ctx, "k", &got))

	m.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrMiss)
}

func TestNop_AlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	require.NoError(t, c.Set(ctx, "k", sample{}, time.Minute))
	var got sample
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}
