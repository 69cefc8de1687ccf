package history_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ChuLiYu/beaver-engine/internal/history"
)

func TestStore_EvictsOldestBeyondCapacity(t *testing.T) {
	s := history.NewStore(2)
	base := time.Unix(0, 0)

	s.Record("driver-1", history.Entry{At: base, Fields: map[string]interface{}{"n": 1}})
	s.Record("driver-1", history.Entry{At: base.Add(time.Second), Fields: map[string]interface{}{"n": 2}})
	s.Record("driver-1", history.Entry{At: base.Add(2 * time.Second), Fields: map[string]interface{}{"n": 3}})

	got := s.Snapshot("driver-1")
	assert.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Fields["n"], "newest entry must be first")
	assert.Equal(t, 2, got[1].Fields["n"])
}

func TestStore_ZeroCapacityDisablesRecording(t *testing.T) {
	s := history.NewStore(0)
	s.Record("driver-1", history.Entry{})
	assert.Nil(t, s.Snapshot("driver-1"))
}

func TestStore_UnknownDriverReturnsNil(t *testing.T) {
	s := history.NewStore(4)
	assert.Nil(t, s.Snapshot("no-such-driver"))
}
