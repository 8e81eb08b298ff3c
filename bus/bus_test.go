package bus

import (
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) *Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected message on %v: %v", m.Topic, m.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("config", "sensors"))
	conn.Publish(conn.NewMessage(T("config", "sensors"), "hello", false))

	if got := recv(t, sub); got.Payload.(string) != "hello" {
		t.Errorf("expected payload 'hello', got %v", got.Payload)
	}
}

func TestNoDeliveryOnOtherTopic(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("a", "b"))
	conn.Publish(conn.NewMessage(T("a", "c"), 1, false))
	expectNone(t, sub)
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("config", "tids0"), "persist", true))

	sub := conn.Subscribe(T("config", "tids0"))
	if got := recv(t, sub); got.Payload.(string) != "persist" {
		t.Errorf("expected retained payload 'persist', got %v", got.Payload)
	}
}

func TestRetainedCleared(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("config", "tids0"), "persist", true))
	conn.Publish(conn.NewMessage(T("config", "tids0"), nil, true))

	sub := conn.Subscribe(T("config", "tids0"))
	expectNone(t, sub)
}

func TestWildcardSingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("hal", "cap", SingleWildcard, "event"))
	c.Publish(c.NewMessage(T("hal", "cap", "tids0", "event"), 1, false))
	c.Publish(c.NewMessage(T("hal", "cap", "tids1", "event"), 2, false))
	c.Publish(c.NewMessage(T("hal", "cap", "tids0", "control"), 3, false))

	got := []int{recv(t, sub).Payload.(int), recv(t, sub).Payload.(int)}
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v", got)
	}
	expectNone(t, sub)
}

func TestWildcardMultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("hal", MultiWildcard))
	c.Publish(c.NewMessage(T("hal"), "root", false))
	c.Publish(c.NewMessage(T("hal", "cap", "tids0", "event", "reading"), "deep", false))
	c.Publish(c.NewMessage(T("other"), "miss", false))

	if got := recv(t, sub); got.Payload.(string) != "root" {
		t.Errorf("got %v", got.Payload)
	}
	if got := recv(t, sub); got.Payload.(string) != "deep" {
		t.Errorf("got %v", got.Payload)
	}
	expectNone(t, sub)
}

func TestRetainedReplayThroughWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(c.NewMessage(T("config", "tids0"), 1, true))
	c.Publish(c.NewMessage(T("config", "tids1"), 2, true))

	sub := c.Subscribe(T("config", SingleWildcard))
	seen := map[int]bool{}
	seen[recv(t, sub).Payload.(int)] = true
	seen[recv(t, sub).Payload.(int)] = true
	if !seen[1] || !seen[2] {
		t.Errorf("retained replay incomplete: %v", seen)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("x"))
	for i := 1; i <= 4; i++ {
		c.Publish(c.NewMessage(T("x"), i, false))
	}

	// Queue length 2: the two newest survive.
	if got := recv(t, sub); got.Payload.(int) != 3 {
		t.Errorf("expected 3, got %v", got.Payload)
	}
	if got := recv(t, sub); got.Payload.(int) != 4 {
		t.Errorf("expected 4, got %v", got.Payload)
	}
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub1 := c.Subscribe(T("a"))
	sub2 := c.Subscribe(T("b"))

	sub1.Unsubscribe()
	c.Publish(c.NewMessage(T("a"), 1, false))
	if _, ok := <-sub1.Channel(); ok {
		t.Error("sub1 channel should be closed")
	}

	c.Disconnect()
	if _, ok := <-sub2.Channel(); ok {
		t.Error("sub2 channel should be closed after disconnect")
	}
}
