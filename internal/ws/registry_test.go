package ws

import (
	"sync"
	"testing"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	reg := NewRegistry()
	c := NewClient(nil, 1, "alice")

	if old := reg.Register(c); old != nil {
		t.Errorf("Register() displaced = %v, want nil", old)
	}
	got, ok := reg.Resolve(1)
	if !ok || got != c {
		t.Errorf("Resolve(1) = %v, %v, want %v, true", got, ok, c)
	}
	if !reg.Online(1) {
		t.Error("Online(1) = false, want true")
	}
}

func TestRegistry_Resolve_Absent(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Resolve(42); ok {
		t.Error("Resolve() for unknown user should report absent")
	}
	if reg.Online(42) {
		t.Error("Online() for unknown user = true, want false")
	}
}

func TestRegistry_LastConnectWins(t *testing.T) {
	reg := NewRegistry()
	c1 := NewClient(nil, 1, "alice")
	c2 := NewClient(nil, 1, "alice")

	reg.Register(c1)
	old := reg.Register(c2)
	if old != c1 {
		t.Errorf("Register() displaced = %v, want %v", old, c1)
	}
	got, _ := reg.Resolve(1)
	if got != c2 {
		t.Errorf("Resolve(1) = %v, want newest connection %v", got, c2)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistry_StaleDisconnectImmunity(t *testing.T) {
	reg := NewRegistry()
	c1 := NewClient(nil, 1, "alice")
	c2 := NewClient(nil, 1, "alice")

	reg.Register(c1)
	reg.Register(c2)

	// The superseded connection disconnects late; it must not clear
	// the newer mapping.
	if reg.Unregister(c1) {
		t.Error("Unregister() of superseded connection reported removal")
	}
	got, ok := reg.Resolve(1)
	if !ok || got != c2 {
		t.Errorf("Resolve(1) after stale disconnect = %v, %v, want %v, true", got, ok, c2)
	}

	if !reg.Unregister(c2) {
		t.Error("Unregister() of owning connection should report removal")
	}
	if _, ok := reg.Resolve(1); ok {
		t.Error("Resolve(1) after owner disconnect should be absent")
	}
}

func TestRegistry_SendTo(t *testing.T) {
	reg := NewRegistry()
	c := NewClient(nil, 1, "alice")
	reg.Register(c)

	if !reg.SendTo(1, []byte("hello")) {
		t.Error("SendTo() to registered user = false, want true")
	}
	select {
	case b := <-c.Outbox():
		if string(b) != "hello" {
			t.Errorf("received %q, want %q", b, "hello")
		}
	default:
		t.Error("no payload in outbox")
	}

	if reg.SendTo(2, []byte("hello")) {
		t.Error("SendTo() to absent user = true, want false")
	}
}

func TestRegistry_Broadcast(t *testing.T) {
	reg := NewRegistry()
	clients := []*Client{
		NewClient(nil, 1, "alice"),
		NewClient(nil, 2, "bob"),
		NewClient(nil, 3, "carol"),
	}
	for _, c := range clients {
		reg.Register(c)
	}

	reg.Broadcast([]byte("evt"))
	for i, c := range clients {
		select {
		case b := <-c.Outbox():
			if string(b) != "evt" {
				t.Errorf("client %d received %q, want %q", i, b, "evt")
			}
		default:
			t.Errorf("client %d did not receive broadcast", i)
		}
	}
}

func TestClient_Send_ClosedAndFull(t *testing.T) {
	c := NewClient(nil, 1, "alice")
	c.Close()
	if c.Send([]byte("x")) {
		t.Error("Send() on closed client = true, want false")
	}

	c2 := NewClient(nil, 2, "bob")
	for i := 0; i < 256; i++ {
		if !c2.Send([]byte("x")) {
			t.Fatalf("Send() %d filled buffer early", i)
		}
	}
	if c2.Send([]byte("overflow")) {
		t.Error("Send() with full buffer = true, want false (drop)")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			c := NewClient(nil, uid, "user")
			reg.Register(c)
			reg.Resolve(uid)
			reg.SendTo(uid, []byte("x"))
			reg.Unregister(c)
		}(uint(i % 10))
	}
	wg.Wait()
}
