// Package future implements the composite-response accumulator used by
// the reactor to fan a client request out across N targets and fan the
// N results back in as a single reply.
package future

import "github.com/ChuLiYu/beaver-engine/pkg/types"

// Future accumulates named parts until it reaches its expected count,
// at which point the registry seals and releases it exactly once.
type Future struct {
	ID          types.FutureID
	Route       types.Route
	Expected    int
	Accumulator map[string]interface{}
}

func newFuture(id types.FutureID, route types.Route, expected int) *Future {
	return &Future{
		ID:          id,
		Route:       route,
		Expected:    expected,
		Accumulator: make(map[string]interface{}, expected),
	}
}
