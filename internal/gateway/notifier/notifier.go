// Package notifier pushes trade fills and failure escalations to an operator
// channel.
package notifier

// Notifier is the outbound alert seam. Implementations must be safe for
// concurrent use.
type Notifier interface {
	SendText(text string) error
}

// Noop drops every message. Used when no channel is configured.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
