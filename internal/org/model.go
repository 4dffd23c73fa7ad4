package org

import (
	"math"
	"time"
)

// Org is an organization whose members accrue supervised study hours.
type Org struct {
	ID        int64
	Name      string
	RegCode   string
	School    string
	StudyReq  float64
	StudyGoal float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group is a named subdivision of an organization (e.g. a pledge class).
type Group struct {
	ID    int64
	OrgID int64
	Name  string
}

// Member is a user belonging to an organization.
type Member struct {
	ID        int64
	OrgID     int64
	GroupID   *int64
	FirstName string
	LastName  string
	Email     string
	Phone     *string
	IsAdmin   bool
	Live      bool
	CreatedAt time.Time
}

// Location is a geofenced study spot: a point plus a radius in meters.
type Location struct {
	ID      int64
	OrgID   int64
	Name    string
	Lat     float64
	Lng     float64
	RadiusM float64
}

const earthRadiusM = 6371000.0

// WithinRadius reports whether the coordinate falls inside the geofence,
// using great-circle (haversine) distance.
func (l Location) WithinRadius(lat, lng float64) bool {
	return l.DistanceM(lat, lng) <= l.RadiusM
}

// DistanceM returns the great-circle distance in meters from the location's
// center to the coordinate.
func (l Location) DistanceM(lat, lng float64) float64 {
	lat1 := lat * math.Pi / 180
	lat2 := l.Lat * math.Pi / 180
	dLat := (l.Lat - lat) * math.Pi / 180
	dLng := (l.Lng - lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
