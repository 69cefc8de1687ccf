package reactor

import "testing"

type fakeLocator struct {
	calls []string
	err   error
}

func (f *fakeLocator) Link(label, endpoint string) error {
	f.calls = append(f.calls, label+"@"+endpoint)
	return f.err
}

func TestAnnounce_LinksSelfLabelToSelfEndpoint(t *testing.T) {
	loc := &fakeLocator{}
	core := &Core{Locator: loc, SelfLabel: "host-1", SelfEndpoint: "127.0.0.1:9700"}

	core.Announce()

	if len(loc.calls) != 1 || loc.calls[0] != "host-1@127.0.0.1:9700" {
		t.Fatalf("expected one Link call to host-1@127.0.0.1:9700, got %v", loc.calls)
	}
}

func TestAnnounce_NoopWithoutLocatorOrLabels(t *testing.T) {
	core := &Core{}
	core.Announce() // must not panic

	loc := &fakeLocator{}
	core = &Core{Locator: loc}
	core.Announce()
	if len(loc.calls) != 0 {
		t.Fatalf("expected no Link call without SelfLabel/SelfEndpoint, got %v", loc.calls)
	}
}
