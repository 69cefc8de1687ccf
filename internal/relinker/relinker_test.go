package relinker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/beaver-engine/internal/relinker"
)

type fakeLocator struct {
	mu    sync.Mutex
	links []string
	fail  map[string]bool
}

func (f *fakeLocator) Link(label, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[endpoint] {
		return assert.AnError
	}
	f.links = append(f.links, label+"@"+endpoint)
	return nil
}

func (f *fakeLocator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

func TestRelinker_LinksEveryConfiguredPeerImmediately(t *testing.T) {
	loc := &fakeLocator{}
	r := relinker.New(map[string][]string{
		"peer-a": {"10.0.0.1:9000"},
		"peer-b": {"10.0.0.2:9000"},
	}, time.Hour, loc)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Equal(t, 2, loc.count())
}

func TestRelinker_IgnoresFailingEndpointAndLinksTheRest(t *testing.T) {
	loc := &fakeLocator{fail: map[string]bool{"bad:9000": true}}
	r := relinker.New(map[string][]string{
		"peer-a": {"bad:9000", "good:9000"},
	}, time.Hour, loc)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Equal(t, 1, loc.count())
	assert.Equal(t, "peer-a@good:9000", loc.links[0])
}

func TestRelinker_LinksEveryEndpointNotJustTheFirstReachable(t *testing.T) {
	loc := &fakeLocator{}
	r := relinker.New(map[string][]string{
		"peer-a": {"one:9000", "two:9000", "three:9000"},
	}, time.Hour, loc)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Equal(t, 3, loc.count(), "every configured endpoint must be attempted, not just the first reachable one")
}
