// internal/infra/email/client.go
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/textproto"

	"memorial_notification_service/internal/domain/channel"
	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/notification"

	"gopkg.in/gomail.v2"
)

// Client sends notifications over SMTP. It implements channel.Sender.
type Client struct {
	dialer *gomail.Dialer
	from   string
}

func NewClient(host string, port int, username, password, from string) *Client {
	return &Client{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (c *Client) Kind() contact.ChannelKind { return contact.KindEmail }

func (c *Client) Send(ctx context.Context, address string, payload notification.Payload) error {
	if _, err := mail.ParseAddress(address); err != nil {
		return channel.NewPermanent("invalid email address", err)
	}
	if err := ctx.Err(); err != nil {
		return channel.NewTransient("context cancelled", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", payload.Subject)
	msg.SetBody("text/plain", payload.Body)

	if err := c.dialer.DialAndSend(msg); err != nil {
		return classifySMTPError(err)
	}
	return nil
}

// classifySMTPError maps SMTP failures onto the channel taxonomy: 5xx reply
// codes are permanent rejections (bad mailbox, policy), everything else
// (dial failures, timeouts, 4xx throttling) is transient.
func classifySMTPError(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 500 {
			return channel.NewPermanent(fmt.Sprintf("smtp %d", proto.Code), err)
		}
		return channel.NewTransient(fmt.Sprintf("smtp %d", proto.Code), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return channel.NewTransient("smtp timeout", err)
	}
	return channel.NewTransient("smtp delivery failed", err)
}
