package activity

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func TestDecodeRoute(t *testing.T) {
	route, err := DecodeRoute(samplePolyline)
	require.NoError(t, err)
	require.Len(t, route, 3)

	// [lng, lat]
	assert.InDelta(t, -120.2, route[0].Lon(), 1e-5)
	assert.InDelta(t, 38.5, route[0].Lat(), 1e-5)
	assert.InDelta(t, -126.453, route[2].Lon(), 1e-5)
	assert.InDelta(t, 43.252, route[2].Lat(), 1e-5)

	empty, err := DecodeRoute("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeRoute("_p~iF~ps|U_")
	assert.Error(t, err)
}

func TestDecodeRoute_RoundTrip(t *testing.T) {
	coords := [][]float64{{53.34, -6.26}, {53.35, -6.25}, {53.36, -6.27}}
	encoded := string(polyline.EncodeCoords(coords))

	route, err := DecodeRoute(encoded)
	require.NoError(t, err)
	require.Len(t, route, len(coords))
	for i, c := range coords {
		assert.InDelta(t, c[0], route[i].Lat(), 1e-5)
		assert.InDelta(t, c[1], route[i].Lon(), 1e-5)
	}
}

func TestRoutesFeatureCollection(t *testing.T) {
	records := []Record{
		{ID: 1, Name: "Run", Type: TypeRun, Distance: 5000, Map: samplePolyline},
		{ID: 2, Name: "Treadmill", Type: TypeRun, Distance: 5000, Map: ""},
		{ID: 3, Name: "Manual", Type: TypeGolf, Distance: 0, Map: samplePolyline},
		{ID: 4, Name: "Broken", Type: TypeRide, Distance: 10000, Map: "_p~iF~ps|U_"},
		{ID: 5, Name: "Dublin", Type: TypeWalk, Distance: 1234, Map: string(polyline.EncodeCoords([][]float64{{53.34, -6.26}, {53.35, -6.25}}))},
	}

	fc := RoutesFeatureCollection(records)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, int64(1), fc.Features[0].ID)
	assert.Equal(t, int64(5), fc.Features[1].ID)
	assert.Equal(t, 1.23, fc.Features[1].Properties["distance_km"])
	assert.IsType(t, orb.LineString{}, fc.Features[0].Geometry)

	// bbox spans both routes: [minLon, minLat, maxLon, maxLat]
	require.Len(t, fc.BBox, 4)
	assert.InDelta(t, -126.453, fc.BBox[0], 1e-5)
	assert.InDelta(t, 38.5, fc.BBox[1], 1e-5)
	assert.InDelta(t, -6.25, fc.BBox[2], 1e-5)
	assert.InDelta(t, 53.35, fc.BBox[3], 1e-5)

	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"FeatureCollection"`)
	assert.Contains(t, string(raw), `"LineString"`)
}

func TestRoutesFeatureCollection_Empty(t *testing.T) {
	fc := RoutesFeatureCollection(nil)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)
}
