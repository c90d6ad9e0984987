package notify

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeSet, "set"},
		{ChangeDelete, "delete"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var got []Change
	sub := n.Subscribe(func(c Change) { got = append(got, c) })

	n.NotifySet("ui.refreshInterval", "global", 2000, 1000, "memory")
	n.NotifyDelete("ui.refreshInterval", "global", 1000, "memory")

	if len(got) != 2 {
		t.Fatalf("received %d changes, want 2", len(got))
	}
	if got[0].Type != ChangeSet || got[0].NewValue != 1000 || got[0].Scope != "global" {
		t.Errorf("set change = %+v", got[0])
	}
	if got[1].Type != ChangeDelete || got[1].OldValue != 1000 || got[1].NewValue != nil {
		t.Errorf("delete change = %+v", got[1])
	}

	sub.Unsubscribe()
	n.NotifyReload("memory")
	if len(got) != 2 {
		t.Error("observer called after Unsubscribe")
	}
}

func TestNotifier_SubscribePath(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32
	n.SubscribePath("sandbox", func(Change) { count.Add(1) })

	n.NotifySet("sandbox.enableChroot", "global", nil, true, "test")
	n.NotifySet("sandbox", "global", nil, map[string]any{}, "test")
	n.NotifySet("sandboxes.other", "global", nil, 1, "test")
	n.NotifySet("ui.refreshInterval", "global", nil, 1, "test")
	n.NotifyReload("test")

	if got := count.Load(); got != 3 {
		t.Errorf("path observer called %d times, want 3", got)
	}
}

func TestSubscription_UnsubscribeIdempotent(t *testing.T) {
	n := New()
	defer n.Close()

	sub := n.Subscribe(func(Change) {})
	n.SubscribePath("audit", func(Change) {})
	if n.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", n.Len())
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	if n.Len() != 1 {
		t.Errorf("Len() = %d, want 1", n.Len())
	}

	var nilSub *Subscription
	nilSub.Unsubscribe()
}

func TestNotifier_CloseSilences(t *testing.T) {
	n := New()

	var called atomic.Bool
	n.Subscribe(func(Change) { called.Store(true) })

	n.Close()
	n.Close()
	n.NotifyReload("test")

	if called.Load() {
		t.Error("observer called after Close")
	}
	if n.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", n.Len())
	}
}

func TestNotifier_SubscribeAfterClose(t *testing.T) {
	n := New()
	n.Close()

	var called atomic.Bool
	sub := n.Subscribe(func(Change) { called.Store(true) })
	pathSub := n.SubscribePath("ui", func(Change) { called.Store(true) })
	if sub == nil || pathSub == nil {
		t.Fatal("Subscribe after Close returned nil")
	}
	if n.Len() != 0 {
		t.Errorf("Len() = %d, want 0", n.Len())
	}

	n.NotifySet("ui.theme", "global", nil, "dark", "test")
	sub.Unsubscribe()
	pathSub.Unsubscribe()
	if called.Load() {
		t.Error("observer registered after Close was called")
	}
}

func TestNotifier_ObserverMaySubscribe(t *testing.T) {
	n := New()
	defer n.Close()

	n.Subscribe(func(Change) {
		n.Subscribe(func(Change) {})
	})
	n.NotifyReload("test")

	if n.Len() != 2 {
		t.Errorf("Len() = %d, want 2", n.Len())
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int64
	for i := 0; i < 4; i++ {
		n.Subscribe(func(Change) { count.Add(1) })
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.NotifySet("io.allowStdinInput", "global", true, false, "test")
		}()
	}
	wg.Wait()

	if got := count.Load(); got != 200 {
		t.Errorf("deliveries = %d, want 200", got)
	}
}

func TestMatchesPath(t *testing.T) {
	tests := []struct {
		prefix, path string
		want         bool
	}{
		{"", "anything", true},
		{"audit", "audit", true},
		{"audit", "audit.enableAuditLog", true},
		{"audit", "auditor.x", false},
		{"audit.enableAuditLog", "audit", false},
	}
	for _, tt := range tests {
		if got := matchesPath(tt.prefix, tt.path); got != tt.want {
			t.Errorf("matchesPath(%q, %q) = %v, want %v", tt.prefix, tt.path, got, tt.want)
		}
	}
}
