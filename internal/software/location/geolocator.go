// Package location samples the driver's position and reports it at a
// cadence that follows the driver's state.
package location

import (
	"context"
	"errors"
	"sync"

	"ride-driver/internal/domain/geo"
)

var (
	// ErrPermissionDenied and ErrUnsupported need the driver to act; polling
	// stops until Retry.
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnsupported      = errors.New("geolocation is not supported on this device")

	// ErrPositionUnavailable is transient; the next tick tries again.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// IsHard reports whether err stops polling.
func IsHard(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnsupported)
}

// Static always reports the same point. Headless agents are configured with
// FIXED_LATITUDE/FIXED_LONGITUDE; tests move it with Set.
type Static struct {
	mu  sync.Mutex
	lat float64
	lng float64
	err error
}

func NewStatic(lat, lng float64) *Static {
	return &Static{lat: lat, lng: lng}
}

func (s *Static) Set(lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lat, s.lng = lat, lng
}

// Fail makes subsequent samples return err (nil to recover).
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) CurrentPosition(ctx context.Context) (geo.Sample, error) {
	if err := ctx.Err(); err != nil {
		return geo.Sample{}, err
	}
	s.mu.Lock()
	lat, lng, err := s.lat, s.lng, s.err
	s.mu.Unlock()
	if err != nil {
		return geo.Sample{}, err
	}
	return geo.NewSample(lat, lng)
}

// Unavailable is used when no position source is configured.
type Unavailable struct{}

func (Unavailable) CurrentPosition(context.Context) (geo.Sample, error) {
	return geo.Sample{}, ErrUnsupported
}
