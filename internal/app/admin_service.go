// internal/app/admin_service.go
package app

import (
	"context"
	"time"

	"memorial_notification_service/internal/domain/memorial"
	"memorial_notification_service/internal/domain/notification"

	"github.com/google/uuid"
)

// AdminService backs the read-only operator commands: upcoming occurrences,
// per-memorial ledger status, and memorials stuck in the stale state.
type AdminService struct {
	memorials       memorial.Repository
	ledger          notification.Repository
	adminTelegramID int64
}

func NewAdminService(mr memorial.Repository, lr notification.Repository, adminTelegramID int64) *AdminService {
	return &AdminService{
		memorials:       mr,
		ledger:          lr,
		adminTelegramID: adminTelegramID,
	}
}

// IsAdmin checks if the given Telegram ID belongs to the configured operator.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return telegramID == s.adminTelegramID
}

// UpcomingOccurrences lists memorials whose anniversary falls within the next
// `days` days.
func (s *AdminService) UpcomingOccurrences(ctx context.Context, now time.Time, days int) ([]*memorial.Memorial, error) {
	from := dateOnly(now)
	return s.memorials.ListUpcoming(ctx, from, from.AddDate(0, 0, days))
}

// LedgerForMemorial returns the full ledger history of one memorial.
func (s *AdminService) LedgerForMemorial(ctx context.Context, memorialID uuid.UUID) ([]*notification.LedgerEntry, error) {
	return s.ledger.ListByMemorial(ctx, memorialID)
}

// StaleMemorials lists records whose occurrence could not be recomputed.
func (s *AdminService) StaleMemorials(ctx context.Context) ([]*memorial.Memorial, error) {
	return s.memorials.ListStale(ctx)
}
