package future_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-engine/internal/future"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

type fakeCounters struct {
	total, alive int
}

func (c *fakeCounters) Created()   { c.total++; c.alive++ }
func (c *fakeCounters) Destroyed() { c.alive-- }

func TestRegistry_SealsExactlyOnceAtExpectedCount(t *testing.T) {
	counters := &fakeCounters{}
	reg := future.NewRegistry(counters)

	f := reg.New(types.Route{"client-1"}, 3)
	require.Equal(t, 1, counters.alive)

	_, sealed, found := reg.Fulfill(f.ID, "a", 1)
	assert.False(t, sealed)
	assert.True(t, found)
	_, sealed, found = reg.Fulfill(f.ID, "b", 2)
	assert.False(t, sealed)
	assert.True(t, found)

	sealedFuture, sealed, found := reg.Fulfill(f.ID, "c", 3)
	require.True(t, sealed)
	require.True(t, found)
	assert.Len(t, sealedFuture.Accumulator, 3)
	assert.Equal(t, 0, counters.alive)
	assert.Equal(t, 1, counters.total)

	_, ok := reg.Get(f.ID)
	assert.False(t, ok, "sealed future must be removed from the registry")
}

func TestRegistry_FulfillAfterSealIsOrphan(t *testing.T) {
	reg := future.NewRegistry(&fakeCounters{})
	f := reg.New(nil, 1)

	_, sealed, found := reg.Fulfill(f.ID, "only", "value")
	require.True(t, sealed)
	require.True(t, found)

	orphan, sealed, found := reg.Fulfill(f.ID, "late", "value")
	assert.Nil(t, orphan)
	assert.False(t, sealed)
	assert.False(t, found, "a fulfillment for an already-sealed future must be reported as an orphan")
}

func TestRegistry_FulfillUnknownFutureIsOrphan(t *testing.T) {
	reg := future.NewRegistry(&fakeCounters{})

	orphan, sealed, found := reg.Fulfill(types.FutureID("does-not-exist"), "part", nil)
	assert.Nil(t, orphan)
	assert.False(t, sealed)
	assert.False(t, found)
}

func TestRegistry_ResetDropsFuturesWithoutSealing(t *testing.T) {
	counters := &fakeCounters{}
	reg := future.NewRegistry(counters)

	reg.New(types.Route{"client-1"}, 2)
	reg.New(types.Route{"client-2"}, 1)
	require.Equal(t, 2, reg.Len())
	require.Equal(t, 2, counters.alive)

	reg.Reset()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, counters.alive)
	assert.Equal(t, 2, counters.total, "reset must not touch the monotonic total")
}
