// pkg/track/geojson.go - GeoJSON reading and writing
//
// Tracks become LineString features. GeoJSON positions are 2D here;
// per-point elevations and timestamps ride along in parallel property
// arrays so nothing is lost on a round trip.
package track

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// ReadGeoJSON parses a GeoJSON FeatureCollection: LineStrings become
// tracks, Points waypoints, Polygons overlays (outer ring only).
func ReadGeoJSON(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeDegenerate, "cannot parse GeoJSON", err)
	}

	d := &Document{}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			t, err := lineStringToTrack(g, f.Properties)
			if err != nil {
				return nil, err
			}
			d.Tracks = append(d.Tracks, t)
		case orb.MultiLineString:
			for i, ls := range g {
				t, err := lineStringToTrack(ls, f.Properties)
				if err != nil {
					return nil, err
				}
				if i > 0 && t.Name != "" {
					t.Name = fmt.Sprintf("%s (seg %d)", t.Name, i+1)
				}
				d.Tracks = append(d.Tracks, t)
			}
		case orb.Point:
			w, err := pointToWaypoint(g, f.Properties)
			if err != nil {
				return nil, err
			}
			d.Waypoints = append(d.Waypoints, w)
		case orb.Polygon:
			o, err := polygonToOverlay(g, f.Properties)
			if err != nil {
				return nil, err
			}
			d.Overlays = append(d.Overlays, o)
		}
	}
	return d, nil
}

// WriteGeoJSON serializes the document as a FeatureCollection.
func WriteGeoJSON(w io.Writer, d *Document) error {
	fc := geojson.NewFeatureCollection()

	for _, t := range d.Tracks {
		fc.Append(trackToFeature(t))
	}
	for _, wp := range d.Waypoints {
		fc.Append(waypointToFeature(wp))
	}
	for _, o := range d.Overlays {
		fc.Append(overlayToFeature(o))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return internal.NewError(internal.ErrorCodeDegenerate, "cannot encode GeoJSON", err)
	}
	return nil
}

func trackToFeature(t *Track) *geojson.Feature {
	ls := make(orb.LineString, len(t.Points))
	var hasEle, hasTime bool
	for i, p := range t.Points {
		ls[i] = orb.Point{p.Coord.Lon, p.Coord.Lat}
		hasEle = hasEle || p.Elevation != nil
		hasTime = hasTime || p.Time != nil
	}

	f := geojson.NewFeature(ls)
	if t.Name != "" {
		f.Properties["name"] = t.Name
	}
	if t.Color != "" {
		f.Properties["color"] = t.Color
	}
	if hasEle {
		eles := make([]interface{}, len(t.Points))
		for i, p := range t.Points {
			if p.Elevation != nil {
				eles[i] = *p.Elevation
			}
		}
		f.Properties["elevations"] = eles
	}
	if hasTime {
		times := make([]interface{}, len(t.Points))
		for i, p := range t.Points {
			if p.Time != nil {
				times[i] = p.Time.UTC().Format(time.RFC3339Nano)
			}
		}
		f.Properties["times"] = times
	}
	return f
}

func lineStringToTrack(ls orb.LineString, props geojson.Properties) (*Track, error) {
	t := &Track{
		Name:  props.MustString("name", ""),
		Color: props.MustString("color", ""),
	}

	eles, _ := props["elevations"].([]interface{})
	times, _ := props["times"].([]interface{})

	for i, pos := range ls {
		c, err := geo.NewCoordinate(pos.Lat(), pos.Lon())
		if err != nil {
			return nil, err
		}
		p := Point{Coord: c}
		if i < len(eles) {
			if e, ok := eles[i].(float64); ok {
				p.Elevation = &e
			}
		}
		if i < len(times) {
			if s, ok := times[i].(string); ok {
				ts, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return nil, internal.NewError(internal.ErrorCodeDegenerate,
						fmt.Sprintf("bad timestamp %q", s), err)
				}
				p.Time = &ts
			}
		}
		t.Points = append(t.Points, p)
	}
	return t, nil
}

func waypointToFeature(wp Waypoint) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{wp.Coord.Lon, wp.Coord.Lat})
	if wp.Name != "" {
		f.Properties["name"] = wp.Name
	}
	if wp.Elevation != nil {
		f.Properties["elevation"] = *wp.Elevation
	}
	if wp.Time != nil {
		f.Properties["time"] = wp.Time.UTC().Format(time.RFC3339Nano)
	}
	return f
}

func pointToWaypoint(p orb.Point, props geojson.Properties) (Waypoint, error) {
	c, err := geo.NewCoordinate(p.Lat(), p.Lon())
	if err != nil {
		return Waypoint{}, err
	}
	w := Waypoint{Coord: c, Name: props.MustString("name", "")}
	if e, ok := props["elevation"].(float64); ok {
		w.Elevation = &e
	}
	if s, ok := props["time"].(string); ok {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Waypoint{}, internal.NewError(internal.ErrorCodeDegenerate,
				fmt.Sprintf("bad timestamp %q", s), err)
		}
		w.Time = &ts
	}
	return w, nil
}

func overlayToFeature(o Overlay) *geojson.Feature {
	ring := make(orb.Ring, 0, len(o.Ring)+1)
	for _, c := range o.Ring {
		ring = append(ring, orb.Point{c.Lon, c.Lat})
	}
	// GeoJSON rings close explicitly.
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	f := geojson.NewFeature(orb.Polygon{ring})
	if o.Name != "" {
		f.Properties["name"] = o.Name
	}
	for k, v := range o.Properties {
		f.Properties[k] = v
	}
	return f
}

func polygonToOverlay(poly orb.Polygon, props geojson.Properties) (Overlay, error) {
	o := Overlay{
		Name:       props.MustString("name", ""),
		Properties: make(map[string]string),
	}
	for k, v := range props {
		if k == "name" {
			continue
		}
		if s, ok := v.(string); ok {
			o.Properties[k] = s
		}
	}

	if len(poly) == 0 {
		return o, nil
	}
	ring := poly[0]
	// Drop the explicit closing point.
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	for _, pos := range ring {
		c, err := geo.NewCoordinate(pos.Lat(), pos.Lon())
		if err != nil {
			return Overlay{}, err
		}
		o.Ring = append(o.Ring, c)
	}
	return o, nil
}
