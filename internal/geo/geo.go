package geo

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/vrflight/routes/pkg/core"
	"github.com/wroge/wgs84"
)

// Web Mercator is only defined up to this latitude.
const maxMercatorLat = 85.05112878

// ErrInvalidCoordinates is returned when a lon/lat pair is out of range
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Projector maps WGS84 lon/lat pairs onto the scene ground plane.
// X grows east and Z grows north, both in metres from the origin.
type Projector struct {
	toMercator func(a, b, c float64) (float64, float64, float64)
	originX    float64
	originY    float64
	scale      float64
}

// NewProjector creates a projector centred on originLon/originLat.
func NewProjector(originLon, originLat float64) (*Projector, error) {
	if !validLonLat(originLon, originLat) {
		return nil, ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	ox, oy, _ := f(originLon, originLat, 0)
	return &Projector{
		toMercator: f,
		originX:    ox,
		originY:    oy,
		// mercator metres are stretched by 1/cos(lat); undo that at the origin
		scale: math.Cos(originLat * math.Pi / 180),
	}, nil
}

// Ground projects lon/lat to a ground-plane position relative to the origin.
func (p *Projector) Ground(lon, lat float64) (core.Position2D, error) {
	if !validLonLat(lon, lat) {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	x, y, _ := p.toMercator(lon, lat, 0)
	return core.Position2D{
		X: (x - p.originX) * p.scale,
		Z: (y - p.originY) * p.scale,
	}, nil
}

func validLonLat(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -maxMercatorLat && lat <= maxMercatorLat
}

// PathLength returns the ground-plane length of the polyline through points,
// ignoring height. Fewer than two points have zero length.
func PathLength(points []mgl64.Vec3) float64 {
	if len(points) < 2 {
		return 0
	}
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X(), p.Z())
	}
	ls := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	return ls.Length()
}
