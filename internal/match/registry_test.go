package match

import "testing"

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry()
	a := newConn("a", "")
	r.Register(a)

	got, ok := r.Get("a")
	if !ok || got != a {
		t.Fatalf("Get=%v ok=%v", got, ok)
	}
	if r.Len() != 1 {
		t.Fatalf("Len=%d, want 1", r.Len())
	}

	if !r.Unregister("a") {
		t.Fatalf("Unregister=false, want true")
	}
	if r.Unregister("a") {
		t.Fatalf("second Unregister=true, want false")
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("Get found unregistered connection")
	}
}

func TestRegistry_AllowsDuplicateIdentities(t *testing.T) {
	r := NewRegistry()

	first := newConn("conn-1", "")
	second := newConn("conn-2", "")
	second.UserID = first.UserID
	second.Username = first.Username

	r.Register(first)
	r.Register(second)

	if r.Len() != 2 {
		t.Fatalf("Len=%d, want 2 (same user, two tabs)", r.Len())
	}
}
