package profile

import (
	"math"
	"time"
)

// Age bounds, inclusive.
const (
	MinAge = 18
	MaxAge = 70
)

// Point is a WGS84 coordinate pair, stored as [lon, lat].
type Point struct {
	Lon float64
	Lat float64
}

// Valid reports whether the point lies within longitude/latitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
		return false
	}
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// Location is an address with optional coordinates.
type Location struct {
	Address string
	Point   *Point
}

// HasPoint reports whether the location carries usable coordinates.
func (l Location) HasPoint() bool {
	return l.Point != nil && l.Point.Valid()
}

// Worker is a registered job seeker. Workers are never hard-deleted.
type Worker struct {
	ID           string
	Name         string
	Age          int
	Phone        string
	PasswordHash string
	Skills       []string
	Experience   int
	Languages    []string
	Location     Location
	ShaktiScore  float64
	IsAvailable  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Company struct {
	Name               string
	Description        string
	RegistrationNumber string
}

type Employer struct {
	ID           string
	Name         string
	Phone        string
	Email        string
	PasswordHash string
	Company      Company
	Location     Location
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkerInput carries registration data supplied by callers.
type WorkerInput struct {
	Name        string
	Age         int
	Phone       string
	Password    string
	Skills      []string
	Experience  int
	Languages   []string
	Location    Location
	IsAvailable *bool
}

// WorkerUpdate is a partial update; nil fields are left unchanged.
type WorkerUpdate struct {
	Name        *string
	Age         *int
	Skills      []string
	Experience  *int
	Languages   []string
	Location    *Location
	IsAvailable *bool
}

type EmployerInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
	Company  Company
	Location Location
}
