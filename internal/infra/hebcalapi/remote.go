// Package hebcalapi sources Hebrew year tables from the HebCal converter API
// and layers last-known-good caching over any table source.
package hebcalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"memorial_notification_service/internal/domain/hebcal"
)

const defaultTimeout = 10 * time.Second

// RemoteSource fetches year tables from the HebCal converter endpoint. Two
// requests per year suffice: the Gregorian date of 1 Tishrei for the year and
// for the year after pin the year length, which determines the whole table.
type RemoteSource struct {
	baseURL string
	client  *http.Client
}

func NewRemoteSource(baseURL string) *RemoteSource {
	return &RemoteSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// converterResponse is the subset of the HebCal h2g JSON response we use.
type converterResponse struct {
	GregorianYear  int    `json:"gy"`
	GregorianMonth int    `json:"gm"`
	GregorianDay   int    `json:"gd"`
	Error          string `json:"error"`
}

func (s *RemoteSource) firstTishrei(ctx context.Context, hebrewYear int) (time.Time, error) {
	params := url.Values{}
	params.Set("cfg", "json")
	params.Set("h2g", "1")
	params.Set("strict", "1")
	params.Set("hy", fmt.Sprintf("%d", hebrewYear))
	params.Set("hm", "Tishrei")
	params.Set("hd", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("building converter request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("converter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("converter returned status %d", resp.StatusCode)
	}
	var body converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decoding converter response: %w", err)
	}
	if body.Error != "" {
		return time.Time{}, fmt.Errorf("converter error: %s", body.Error)
	}
	return time.Date(body.GregorianYear, time.Month(body.GregorianMonth), body.GregorianDay,
		0, 0, 0, 0, time.UTC), nil
}

func (s *RemoteSource) YearTable(ctx context.Context, hebrewYear int) (hebcal.YearTable, error) {
	if hebrewYear < hebcal.MinYear || hebrewYear > hebcal.MaxYear {
		return hebcal.YearTable{}, fmt.Errorf("year %d: %w", hebrewYear, hebcal.ErrUnsupportedDateRange)
	}
	first, err := s.firstTishrei(ctx, hebrewYear)
	if err != nil {
		return hebcal.YearTable{}, fmt.Errorf("year %d: %w", hebrewYear, err)
	}
	next, err := s.firstTishrei(ctx, hebrewYear+1)
	if err != nil {
		return hebcal.YearTable{}, fmt.Errorf("year %d: %w", hebrewYear+1, err)
	}
	return hebcal.NewYearTableFromBounds(hebrewYear, first, next)
}
