package notify

import (
	"context"
	"errors"
)

// Channel names.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

var (
	// ErrNotConfigured is returned by Send on a channel with incomplete settings.
	ErrNotConfigured = errors.New("notify: channel not configured")
	// ErrNoChannels is returned when no channel is enabled.
	ErrNoChannels = errors.New("notify: no channel configured")
)

// Channel delivers a rendered reminder.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Enabled reports whether the channel has everything it needs to send.
	Enabled() bool
	// Send delivers msg.
	Send(ctx context.Context, msg Message) error
}
