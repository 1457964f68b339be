// internal/app/render.go
package app

import (
	"fmt"
	"time"

	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"
)

// renderPayload produces the channel-agnostic reminder content for one
// memorial occurrence. Channels decide how subject and body are combined.
func renderPayload(m *memorial.Memorial, occurrence time.Time) notification.Payload {
	return notification.Payload{
		Subject: fmt.Sprintf("Yahrzeit reminder: %s", m.Name),
		Body: fmt.Sprintf(
			"The yahrzeit of %s (%s) falls on %s.\n"+
				"May their memory be a blessing.",
			m.Name,
			fmt.Sprintf("%d %s", m.AnniversaryHebrew.Day, m.AnniversaryHebrew.Month),
			occurrence.Format("Monday, January 2, 2006"),
		),
	}
}
