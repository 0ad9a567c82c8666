package domain

type Statistics struct {
	UserCount         int64 `json:"total_users"`
	FlightCount       int64 `json:"total_flights"`
	BookingCount      int64 `json:"total_bookings"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
}
