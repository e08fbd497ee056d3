package core

import "sync"

// Client is a connected session as seen by the gateway. The identity fields
// are bound at connection admission and never change afterwards.
type Client struct {
	ID     string // connection id, unique per transport session
	UserID string
	Email  string
	Events chan *Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, userID, email string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Email:  email,
		Events: make(chan *Event, 32),
		done:   make(chan struct{}),
	}
}

// Close marks the client as disconnected. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the client has disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// send delivers an event to the client without blocking.
// Returns false if the client is gone or its queue is full.
func (c *Client) send(ev *Event) bool {
	if c.closed() {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
