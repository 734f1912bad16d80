// pkg/core/route.go
package core

// RouteRecord is one externally supplied waypoint definition.
// ID is the sort and identity key; uniqueness is assumed, not enforced.
type RouteRecord struct {
	ID         string
	X          float64
	Z          float64
	Properties map[string]any
}

// Position2D is a position on the ground plane.
type Position2D struct {
	X float64
	Z float64
}
