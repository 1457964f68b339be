// internal/infra/telegram/admin_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"memorial_notification_service/internal/app"
	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/memorial"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"
)

const handlerTimeout = 10 * time.Second

// RegisterAdminHandlers wires the operator commands: record management
// through the lifecycle service plus the read-only status views. Every
// handler is gated on the configured admin Telegram ID.
func RegisterAdminHandlers(b *telebot.Bot, adminService *app.AdminService, lifecycle *app.LifecycleService) {
	adminOnly := func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() == nil || !adminService.IsAdmin(c.Sender().ID) {
				return c.Send("Unauthorized.")
			}
			return next(c)
		}
	}

	b.Handle("/add_memorial", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		// Format: /add_memorial <YYYY-MM-DD> <name...>
		if len(args) < 2 {
			return c.Send("Usage: /add_memorial <death-date YYYY-MM-DD> <name>")
		}
		deathDate, err := time.ParseInLocation("2006-01-02", args[0], time.UTC)
		if err != nil {
			return c.Send("Invalid death date, expected YYYY-MM-DD.")
		}
		name := strings.TrimSpace(strings.Join(args[1:], " "))
		if name == "" {
			return c.Send("Name cannot be empty.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		m := &memorial.Memorial{Name: name, DeathDateGregorian: deathDate}
		if err := lifecycle.OnMemorialCreated(ctx, m); err != nil {
			return c.Send(fmt.Sprintf("Failed to add memorial: %v", err))
		}
		return c.Send(fmt.Sprintf("Memorial %s added. Anniversary: %d %s, next occurrence %s.",
			m.ID, m.AnniversaryHebrew.Day, m.AnniversaryHebrew.Month,
			m.NextOccurrence.Format("2006-01-02")))
	}))

	b.Handle("/set_death_date", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 2 {
			return c.Send("Usage: /set_death_date <memorial-id> <YYYY-MM-DD>")
		}
		memorialID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Invalid memorial id.")
		}
		deathDate, err := time.ParseInLocation("2006-01-02", args[1], time.UTC)
		if err != nil {
			return c.Send("Invalid death date, expected YYYY-MM-DD.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := lifecycle.OnDeathDateChanged(ctx, memorialID, deathDate); err != nil {
			return c.Send(fmt.Sprintf("Failed to update death date: %v", err))
		}
		return c.Send("Death date updated, calendar fields recomputed.")
	}))

	b.Handle("/remove_memorial", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /remove_memorial <memorial-id>")
		}
		memorialID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Invalid memorial id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := lifecycle.OnMemorialDeleted(ctx, memorialID); err != nil {
			return c.Send(fmt.Sprintf("Failed to remove memorial: %v", err))
		}
		return c.Send("Memorial removed, open notifications cancelled.")
	}))

	b.Handle("/add_contact", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		// Format: /add_contact <memorial-id> <EMAIL|GROUP_MESSAGE> <address>
		if len(args) != 3 {
			return c.Send("Usage: /add_contact <memorial-id> <EMAIL|GROUP_MESSAGE> <address>")
		}
		memorialID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Invalid memorial id.")
		}
		kind := contact.ChannelKind(strings.ToUpper(args[1]))
		if kind != contact.KindEmail && kind != contact.KindGroupMessage {
			return c.Send("Channel kind must be EMAIL or GROUP_MESSAGE.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		ct := &contact.Contact{
			MemorialID: memorialID,
			Kind:       kind,
			Address:    args[2],
			Active:     true,
		}
		if err := lifecycle.RegisterContact(ctx, ct); err != nil {
			return c.Send(fmt.Sprintf("Failed to add contact: %v", err))
		}
		return c.Send(fmt.Sprintf("Contact %s added.", ct.ID))
	}))

	b.Handle("/optout_contact", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /optout_contact <contact-id>")
		}
		contactID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Invalid contact id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := lifecycle.OnContactOptedOut(ctx, contactID); err != nil {
			return c.Send(fmt.Sprintf("Failed to opt out contact: %v", err))
		}
		return c.Send("Contact opted out, open notifications cancelled.")
	}))

	b.Handle("/upcoming", adminOnly(func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		days := 30
		memorials, err := adminService.UpcomingOccurrences(ctx, time.Now(), days)
		if err != nil {
			return c.Send(fmt.Sprintf("Failed to list upcoming occurrences: %v", err))
		}
		if len(memorials) == 0 {
			return c.Send(fmt.Sprintf("No anniversaries in the next %d days.", days))
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Anniversaries in the next %d days:\n", days)
		for _, m := range memorials {
			fmt.Fprintf(&sb, "- %s: %s (%d %s)\n",
				m.NextOccurrence.Format("2006-01-02"), m.Name,
				m.AnniversaryHebrew.Day, m.AnniversaryHebrew.Month)
		}
		return c.Send(sb.String())
	}))

	b.Handle("/ledger", adminOnly(func(c telebot.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /ledger <memorial-id>")
		}
		memorialID, err := uuid.Parse(args[0])
		if err != nil {
			return c.Send("Invalid memorial id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		entries, err := adminService.LedgerForMemorial(ctx, memorialID)
		if err != nil {
			return c.Send(fmt.Sprintf("Failed to list ledger entries: %v", err))
		}
		if len(entries) == 0 {
			return c.Send("No ledger entries for that memorial.")
		}
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "%d %s [%s] attempts=%d contact=%s\n",
				e.CycleYear, e.ChannelKind, e.Status, e.AttemptCount, e.ContactID)
		}
		return c.Send(sb.String())
	}))

	b.Handle("/stale", adminOnly(func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		memorials, err := adminService.StaleMemorials(ctx)
		if err != nil {
			return c.Send(fmt.Sprintf("Failed to list stale memorials: %v", err))
		}
		if len(memorials) == 0 {
			return c.Send("No stale memorials.")
		}
		var sb strings.Builder
		sb.WriteString("Memorials needing attention:\n")
		for _, m := range memorials {
			fmt.Fprintf(&sb, "- %s (%s), last occurrence %s\n",
				m.Name, m.ID, m.NextOccurrence.Format("2006-01-02"))
		}
		return c.Send(sb.String())
	}))
}
