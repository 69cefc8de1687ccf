package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChuLiYu/beaver-engine/internal/future"
	"github.com/ChuLiYu/beaver-engine/internal/metrics"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

func TestFulfill_OrphanForUnknownFutureIsDroppedWithoutPanic(t *testing.T) {
	var requestCtr metrics.ClassCounter
	responder := newFakeResponder()
	core := &Core{Futures: future.NewRegistry(&requestCtr), Responder: responder}

	assert.NotPanics(t, func() {
		core.fulfill(types.FutureID("does-not-exist"), "part", "value")
	})
	assert.Empty(t, responder.responses, "an orphan fulfillment must never reach the responder")
}

func TestFulfill_SealsAndRespondsForKnownFuture(t *testing.T) {
	var requestCtr metrics.ClassCounter
	responder := newFakeResponder()
	futures := future.NewRegistry(&requestCtr)
	core := &Core{Futures: futures, Responder: responder}

	f := futures.New(types.Route{"client-1"}, 1)
	core.fulfill(f.ID, "only", "value")

	responder.mu.Lock()
	defer responder.mu.Unlock()
	assert.Contains(t, responder.responses, "client-1")
}
