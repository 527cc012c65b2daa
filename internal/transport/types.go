// Package transport defines the messaging-channel boundary.
//
// The reminder engine only needs "send text to an address and tell me if it
// worked"; session/pairing lifecycle belongs to the concrete adapter.
package transport

import (
	"context"
	"strings"
)

// Channel is the outbound messaging capability used for reminder delivery.
//
// Ready reports whether the underlying session can accept sends right now;
// the delivery batch checks it once up front and skips the whole run when
// false. SendText blocks for the network round trip (the adapter owns its
// own timeouts).
type Channel interface {
	Ready() bool
	SendText(ctx context.Context, address, text string) error
	Stop(ctx context.Context) error
}

// Command is an inbound operator command received over the channel
// (e.g. "/run" sent to the bot). Authorization is the caller's concern.
type Command struct {
	Name   string // without the leading slash
	Args   string
	FromID int64
	ChatID int64
}

// CommandHandler consumes inbound operator commands. The returned string, if
// not empty, is replied to the originating chat.
type CommandHandler func(ctx context.Context, cmd Command) string

// NormalizeAddress reduces a phone-style contact address to bare digits.
// Returns "" when nothing usable remains.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
