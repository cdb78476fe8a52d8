package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
)

const (
	DefaultHistoryPage = 5
	MaxHistoryPage     = 50
)

var ErrHistoryUnavailable = errors.New("ride history backend not configured")

// RideHistory proxies the driver's latest bookings. pageSize outside
// 1..MaxHistoryPage falls back to DefaultHistoryPage.
func (s *Service) RideHistory(ctx context.Context, pageSize int) (json.RawMessage, error) {
	sess := s.session.Current()
	if !sess.CanConnect() {
		return nil, ErrNotAuthenticated
	}
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	if pageSize < 1 || pageSize > MaxHistoryPage {
		pageSize = DefaultHistoryPage
	}
	return s.history.RideHistory(logger.WithDriverID(ctx, sess.DriverID), sess.DriverID, pageSize)
}

// Earnings proxies fare analytics for a named range (7d, 30d, month, year).
func (s *Service) Earnings(ctx context.Context, rangeName string) (json.RawMessage, error) {
	sess := s.session.Current()
	if !sess.CanConnect() {
		return nil, ErrNotAuthenticated
	}
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	r, err := ride.ParseEarningsRange(rangeName)
	if err != nil {
		return nil, err
	}
	from, to := r.Bounds(time.Now().UTC())
	return s.history.Earnings(logger.WithDriverID(ctx, sess.DriverID), from, to)
}
