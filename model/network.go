package model

import "github.com/paulmach/orb"

// Direction is a channel direction between two wells as read from inventory.
// Coordinates are WGS84 [lng, lat] pairs; a usable direction has at least two.
type Direction struct {
	ID          int64
	Number      string
	StartWellID int64
	EndWellID   int64

	// LengthM is the stored length in metres. Zero means unknown; the graph
	// builder then derives it from the polyline.
	LengthM float64

	Coords orb.LineString
}

// Well carries display metadata used by the read views.
type Well struct {
	ID     int64
	Number string
}

// Owner carries display metadata used by the read views.
type Owner struct {
	ID    int64
	Name  string
	Color string
}

// DirectionCapacity is the unaccounted cable count of one direction.
type DirectionCapacity struct {
	DirectionID int64
	Unaccounted int
}

// WellOwnerCount counts something (tags, known duct cables) per well and owner.
type WellOwnerCount struct {
	WellID  int64
	OwnerID int64
	Count   int
}

// DirectionOwnerCount counts known duct cables per direction and owner.
type DirectionOwnerCount struct {
	DirectionID int64
	OwnerID     int64
	Count       int
}

// Dataset is everything a rebuild reads from the domain schema.
type Dataset struct {
	Directions []Direction
	Capacities []DirectionCapacity

	// Tags holds tag counts from the latest inventory card of each well.
	Tags []WellOwnerCount

	// DuctCablesByWell and DuctCablesByDirection count existing cables of the
	// duct object type passing through a well or routed along a direction.
	DuctCablesByWell      []WellOwnerCount
	DuctCablesByDirection []DirectionOwnerCount

	// Wells and Owners are only needed by the read views.
	Wells  []Well
	Owners []Owner
}
