package geo

import (
	"errors"
	"time"

	"github.com/mmcloughlin/geohash"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// GeohashPrecision gives cells of roughly 150m, enough for dispatch bucketing.
const GeohashPrecision = 7

// Sample is one position fix from the device.
type Sample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewSample validates coordinates and stamps the sample with now (UTC).
func NewSample(lat, lng float64) (Sample, error) {
	s := Sample{Latitude: lat, Longitude: lng, CapturedAt: time.Now().UTC()}
	if err := s.Validate(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

func (s Sample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Geohash encodes the sample at GeohashPrecision.
func (s Sample) Geohash() string {
	return geohash.EncodeWithPrecision(s.Latitude, s.Longitude, GeohashPrecision)
}
