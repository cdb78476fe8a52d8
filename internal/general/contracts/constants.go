package contracts

import "fmt"

// Exchanges
const (
	ExchangeDriverTopic = "driver_topic"
)

// Routing patterns
const (
	RouteDriverStatusPrefix = "driver.status." // {driver_id}
)

// Realtime frame types
const (
	FrameAuth        = "auth"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
)

// DriverTopic is the per-driver inbound destination.
func DriverTopic(driverID string) string {
	return "/topic/driver/" + driverID
}

// RideResponseDestination receives the driver's accept/decline.
func RideResponseDestination(driverID string) string {
	return "/app/rideResponse/" + driverID
}

// RideLocationDestination receives position samples during an active ride.
func RideLocationDestination(driverID, bookingID string) string {
	return fmt.Sprintf("/app/driver/%s/ride/%s/location", driverID, bookingID)
}

// DriverStatusRoutingKey is "driver.status.{driver_id}".
func DriverStatusRoutingKey(driverID string) string {
	return RouteDriverStatusPrefix + driverID
}
