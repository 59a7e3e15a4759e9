package activity

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"
)

// DecodeRoute decodes an encoded polyline into a line with [lng, lat] points.
// An empty polyline yields an empty line.
func DecodeRoute(encoded string) (orb.LineString, error) {
	if encoded == "" {
		return orb.LineString{}, nil
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}

	route := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		// polyline coordinates are lat, lng
		route = append(route, orb.Point{c[1], c[0]})
	}
	return route, nil
}

// RoutesFeatureCollection builds one LineString feature per record that has
// moved and has a route. Undecodable routes are skipped.
func RoutesFeatureCollection(records []Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	var bound orb.Bound
	for _, r := range records {
		if r.Distance <= 0 || r.Map == "" {
			continue
		}
		route, err := DecodeRoute(r.Map)
		if err != nil {
			log.Warnf("activity %d: %s", r.ID, err)
			continue
		}
		if len(route) == 0 {
			continue
		}

		f := geojson.NewFeature(route)
		f.ID = r.ID
		f.Properties["name"] = r.Name
		f.Properties["type"] = r.Type
		f.Properties["start_date"] = r.StartDate
		f.Properties["distance_km"] = DistanceKm(r.Distance)
		fc.Append(f)

		if len(fc.Features) == 1 {
			bound = route.Bound()
		} else {
			bound = bound.Union(route.Bound())
		}
	}

	if len(fc.Features) > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	return fc
}
