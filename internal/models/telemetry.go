package models

import "time"

// ProviderLocation is the last known position report for a provider,
// consumed by the engine to gate the arrival transition. The engine never
// writes these; the location feed does.
type ProviderLocation struct {
	ProviderID int64     `json:"provider_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ReportedAt time.Time `json:"reported_at"`
}

// FreshWithin reports whether the location was reported within the window.
func (l *ProviderLocation) FreshWithin(window time.Duration, now time.Time) bool {
	if l == nil {
		return false
	}
	return now.Sub(l.ReportedAt) <= window
}
