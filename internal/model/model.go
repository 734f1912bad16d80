package model

import (
	"maps"
	"time"

	"github.com/vrflight/routes/pkg/core"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct that represents a table in the schema
var DatabaseModels = []interface{}{
	&Route{},
}

// Route is one persisted waypoint definition.
// RouteID is not unique: duplicate ids are legal and produce duplicate entities.
type Route struct {
	ID         uint              `json:"-" gorm:"primarykey"`
	CreatedAt  time.Time         `json:"-"`
	RouteID    string            `json:"id" gorm:"type:text;index:idx_route_id;not null"`
	X          float64           `json:"x"`
	Z          float64           `json:"z"`
	Properties datatypes.JSONMap `json:"properties,omitempty"`
}

func (*Route) TableName() string {
	return "routes"
}

// ToCore converts the row to the shared domain type.
func (r Route) ToCore() core.RouteRecord {
	var props map[string]any
	if len(r.Properties) > 0 {
		props = maps.Clone(map[string]any(r.Properties))
	}
	return core.RouteRecord{
		ID:         r.RouteID,
		X:          r.X,
		Z:          r.Z,
		Properties: props,
	}
}

// RouteFromCore builds a row from a domain record.
func RouteFromCore(rec core.RouteRecord) Route {
	var props datatypes.JSONMap
	if len(rec.Properties) > 0 {
		props = datatypes.JSONMap(maps.Clone(rec.Properties))
	}
	return Route{
		RouteID:    rec.ID,
		X:          rec.X,
		Z:          rec.Z,
		Properties: props,
	}
}
