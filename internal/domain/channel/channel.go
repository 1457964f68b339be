package channel

import (
	"context"

	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/notification"
)

// Sender is the uniform send contract over concrete delivery channels. The
// address is the contact's address or group handle; rate limiting and
// provider backpressure are the implementation's responsibility.
type Sender interface {
	Kind() contact.ChannelKind
	Send(ctx context.Context, address string, payload notification.Payload) error
}
