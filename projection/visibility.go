// Package projection builds viewer-specific views over the message log.
// It decides what a given viewer may see; it never mutates the log.
package projection

import (
	"batepapo/domain"

	"github.com/samber/lo"
)

// Visible reports whether viewer may see the message.
// Broadcasts and public-typed messages are visible to anyone; a private
// message only to its sender and its named recipient. Status events carry
// the broadcast recipient and are therefore visible to everyone.
func Visible(m domain.Message, viewer string) bool {
	return m.To == domain.Broadcast ||
		m.From == viewer ||
		m.To == viewer ||
		m.Type == domain.TypePublic
}

// ForViewer keeps the messages viewer may see, preserving order.
func ForViewer(messages []domain.Message, viewer string) []domain.Message {
	return lo.Filter(messages, func(m domain.Message, _ int) bool {
		return Visible(m, viewer)
	})
}
