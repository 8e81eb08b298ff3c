// Package bus implements the in-process message bus the services communicate
// over: topic-trie pub/sub with retained messages, MQTT-style wildcards and
// per-subscription buffered channels.
package bus

import (
	"sync"
)

// Wildcard tokens usable in subscription patterns.
const (
	SingleWildcard = "+" // matches exactly one level
	MultiWildcard  = "#" // matches the rest of the topic (must be last)
)

// Topic is a sequence of string tokens.
type Topic []string

// T builds a topic from tokens.
func T(tokens ...string) Topic { return Topic(tokens) }

// Equal reports token-wise equality.
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Pattern() Topic           { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

type Bus struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewBus creates a bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// Publish delivers a message to all matching subscribers. Retained messages
// are additionally stored at their literal topic and replayed to later
// subscribers; a retained message with a nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deliver(b.root, msg.Topic, msg)

	if msg.Retained {
		n := b.ensurePath(msg.Topic)
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

func (b *Bus) deliver(n *node, rest Topic, msg *Message) {
	if n == nil {
		return
	}
	if mw := n.child(MultiWildcard); mw != nil {
		for _, s := range mw.subs {
			push(s.ch, msg)
		}
	}
	if len(rest) == 0 {
		for _, s := range n.subs {
			push(s.ch, msg)
		}
		return
	}
	b.deliver(n.child(rest[0]), rest[1:], msg)
	b.deliver(n.child(SingleWildcard), rest[1:], msg)
}

func (n *node) child(tok string) *node {
	if n.children == nil {
		return nil
	}
	return n.children[tok]
}

func (b *Bus) ensurePath(topic Topic) *node {
	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		c, ok := n.children[tok]
		if !ok {
			c = &node{}
			n.children[tok] = c
		}
		n = c
	}
	return n
}

// push enqueues without blocking; the oldest queued message is dropped when
// the subscriber is not keeping up.
func push(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.ensurePath(sub.pattern)
	n.subs = append(n.subs, sub)

	// Replay retained messages matching the pattern.
	b.collectRetained(b.root, sub.pattern, sub.ch)
}

func (b *Bus) collectRetained(n *node, pat Topic, ch chan *Message) {
	if n == nil {
		return
	}
	if len(pat) == 0 {
		if n.retained != nil {
			push(ch, n.retained)
		}
		return
	}
	switch pat[0] {
	case MultiWildcard:
		n.walkRetained(ch)
	case SingleWildcard:
		for _, c := range n.children {
			b.collectRetained(c, pat[1:], ch)
		}
	default:
		b.collectRetained(n.child(pat[0]), pat[1:], ch)
	}
}

func (n *node) walkRetained(ch chan *Message) {
	if n.retained != nil {
		push(ch, n.retained)
	}
	for _, c := range n.children {
		c.walkRetained(ch)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range sub.pattern {
		c := n.child(tok)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(sub.pattern) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.pattern[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// Connection groups subscriptions under one owner so they can be torn down
// together.
type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

// NewMessage is a small convenience constructor.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(pattern Topic) *Subscription {
	sub := &Subscription{
		pattern: pattern,
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions owned by the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}
