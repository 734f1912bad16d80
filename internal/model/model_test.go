package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrflight/routes/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

func TestRoute_TableName(t *testing.T) {
	assert.Equal(t, "routes", (&Route{}).TableName())
}

func TestRouteFromCore(t *testing.T) {
	rec := core.RouteRecord{ID: "R10", X: 5, Z: -2.5, Properties: map[string]any{"altitude": 300.0}}

	row := RouteFromCore(rec)

	assert.Equal(t, "R10", row.RouteID)
	assert.Equal(t, 5.0, row.X)
	assert.Equal(t, -2.5, row.Z)
	assert.Equal(t, datatypes.JSONMap{"altitude": 300.0}, row.Properties)

	// the row owns its own map
	row.Properties["altitude"] = 1.0
	assert.Equal(t, 300.0, rec.Properties["altitude"])
}

func TestRoute_ToCore(t *testing.T) {
	row := Route{ID: 7, RouteID: "R1", X: 1, Z: 2}

	rec := row.ToCore()

	assert.Equal(t, core.RouteRecord{ID: "R1", X: 1, Z: 2}, rec)
	assert.Nil(t, rec.Properties)
}

func TestRoute_RouteIDHasNoLengthLimit(t *testing.T) {
	s, err := schema.Parse(&Route{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	f := s.LookUpField("RouteID")
	require.NotNil(t, f)
	assert.Equal(t, schema.DataType("text"), f.DataType)
	assert.Zero(t, f.Size)
	assert.Equal(t, "route_id", f.DBName)

	long := strings.Repeat("R", 300)
	assert.Equal(t, long, RouteFromCore(core.RouteRecord{ID: long}).ToCore().ID)
}
