// Package geo classifies complaint locations by their distance to sensitive zones.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/linesmerrill/swachhsnap-api/models"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by Distance
	EarthRadiusMeters = 6371000.0
	// HighPriorityRadiusMeters is the exclusive radius around a zone that marks a complaint high priority
	HighPriorityRadiusMeters = 200.0
)

// ErrInvalidCoordinate is returned for coordinates outside the valid lat/lng range
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 latitude/longitude pair in degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects NaN, infinite and out of range values
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) || math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinate)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Zone is a named sensitive location such as a hospital or school
type Zone struct {
	Name string `json:"name"`
	Coordinate
}

// DefaultZones are used when no zones are configured
var DefaultZones = []Zone{
	{Name: "City Hospital", Coordinate: Coordinate{Latitude: 12.9716, Longitude: 77.5946}},
	{Name: "Global School", Coordinate: Coordinate{Latitude: 12.9352, Longitude: 77.6245}},
}

// Distance returns the great-circle distance in meters using the haversine formula
func Distance(a, b Coordinate) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Classifier assigns a priority from a fixed zone list
type Classifier struct {
	zones []Zone
}

// NewClassifier copies zones so later changes to the slice do not leak in
func NewClassifier(zones []Zone) *Classifier {
	z := make([]Zone, len(zones))
	copy(z, zones)
	return &Classifier{zones: z}
}

// Zones returns a copy of the configured zones
func (c *Classifier) Zones() []Zone {
	z := make([]Zone, len(c.zones))
	copy(z, c.zones)
	return z
}

// Classify returns high when p is strictly closer than HighPriorityRadiusMeters to any zone
func (c *Classifier) Classify(p Coordinate) models.Priority {
	if _, meters, ok := c.Nearest(p); ok {
		return priorityFor(meters)
	}
	return models.PriorityNormal
}

// Nearest returns the closest zone and its distance. ok is false when no zones are configured.
func (c *Classifier) Nearest(p Coordinate) (zone Zone, meters float64, ok bool) {
	meters = math.Inf(1)
	for _, z := range c.zones {
		if d := Distance(p, z.Coordinate); d < meters {
			zone, meters, ok = z, d, true
		}
	}
	return zone, meters, ok
}

func priorityFor(meters float64) models.Priority {
	if meters < HighPriorityRadiusMeters {
		return models.PriorityHigh
	}
	return models.PriorityNormal
}

// ParseZones reads "Name:lat:lng" entries separated by semicolons
func ParseZones(s string) ([]Zone, error) {
	var zones []Zone
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("zone %q: want name:lat:lng", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("zone %q latitude: %w", entry, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("zone %q longitude: %w", entry, err)
		}
		z := Zone{Name: strings.TrimSpace(parts[0]), Coordinate: Coordinate{Latitude: lat, Longitude: lng}}
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone %q: %w", entry, err)
		}
		zones = append(zones, z)
	}
	return zones, nil
}
