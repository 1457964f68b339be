package hebcalapi

import (
	"context"
	"sync"

	"memorial_notification_service/internal/domain/hebcal"

	"github.com/sirupsen/logrus"
)

// CachedSource serves year tables from an in-memory last-known-good cache,
// refreshing through the primary source. When the primary is unreachable it
// falls back to the secondary source with a logged staleness warning, so date
// computations for known years keep working offline. Year tables are
// immutable facts, so cached entries never expire.
type CachedSource struct {
	primary  hebcal.TableSource
	fallback hebcal.TableSource
	logger   *logrus.Logger

	mu    sync.RWMutex
	cache map[int]hebcal.YearTable
}

func NewCachedSource(primary, fallback hebcal.TableSource, logger *logrus.Logger) *CachedSource {
	return &CachedSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		cache:    make(map[int]hebcal.YearTable),
	}
}

func (s *CachedSource) YearTable(ctx context.Context, hebrewYear int) (hebcal.YearTable, error) {
	s.mu.RLock()
	table, ok := s.cache[hebrewYear]
	s.mu.RUnlock()
	if ok {
		return table, nil
	}

	table, err := s.primary.YearTable(ctx, hebrewYear)
	if err != nil {
		if s.fallback == nil {
			return hebcal.YearTable{}, err
		}
		s.logger.WithFields(logrus.Fields{
			"hebrew_year": hebrewYear,
			"error":       err,
		}).Warn("Primary calendar source unreachable, using fallback table")
		if table, err = s.fallback.YearTable(ctx, hebrewYear); err != nil {
			return hebcal.YearTable{}, err
		}
	}

	s.mu.Lock()
	s.cache[hebrewYear] = table
	s.mu.Unlock()
	return table, nil
}
