package service

import (
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/geo"
	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/software/location"
	"ride-driver/internal/software/notify"
)

type LocationStatus struct {
	Mode            location.Mode `json:"mode"`
	IntervalSeconds float64       `json:"interval_seconds"`
	LastSample      *geo.Sample   `json:"last_sample,omitempty"`
	Error           string        `json:"error,omitempty"`
}

type Snapshot struct {
	Session         driver.Session     `json:"session"`
	Online          bool               `json:"online"`
	Connection      websocket.State    `json:"connection"`
	ConnectionSince *time.Time         `json:"connection_since,omitempty"`
	Booking         ride.ActiveBooking `json:"booking"`
	Location        LocationStatus     `json:"location"`
}

type Notifications struct {
	Toasts  []notify.Toast  `json:"toasts"`
	Prompts []notify.Prompt `json:"prompts"`
}

func (s *Service) Snapshot() Snapshot {
	loc := LocationStatus{
		Mode:            s.cadence.Mode(),
		IntervalSeconds: s.cadence.Interval().Seconds(),
	}
	if sample, ok := s.cadence.LastSample(); ok {
		loc.LastSample = &sample
	}
	if err := s.cadence.Err(); err != nil {
		loc.Error = err.Error()
	}

	snap := Snapshot{
		Session:    s.session.Current(),
		Online:     s.presence.Online(),
		Connection: s.realtime.State(),
		Booking:    s.booking.Current(),
		Location:   loc,
	}
	// the recorded time only describes the live state once the listener
	// has caught up with it
	if state, since := s.connection(); state == snap.Connection && !since.IsZero() {
		snap.ConnectionSince = &since
	}
	return snap
}

func (s *Service) Notifications() Notifications {
	return Notifications{Toasts: s.presenter.Recent(), Prompts: s.presenter.Prompts()}
}
