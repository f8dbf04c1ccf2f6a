// pkg/track/gpx.go - GPX 1.1 reading and writing
package track

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

const gpxNamespace = "http://www.topografix.com/GPX/1/1"

// gpxCoord formats latitude and longitude attributes with seven
// decimal places, about a centimeter of precision, so coordinates
// survive a round trip through text.
type gpxCoord float64

func (c gpxCoord) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: strconv.FormatFloat(float64(c), 'f', 7, 64)}, nil
}

func (c *gpxCoord) UnmarshalXMLAttr(attr xml.Attr) error {
	f, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return fmt.Errorf("bad coordinate %q: %w", attr.Value, err)
	}
	*c = gpxCoord(f)
	return nil
}

type gpxDoc struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Xmlns     string     `xml:"xmlns,attr"`
	Waypoints []gpxPoint `xml:"wpt"`
	Tracks    []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name     string   `xml:"name,omitempty"`
	Segments []gpxSeg `xml:"trkseg"`
}

type gpxSeg struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  gpxCoord `xml:"lat,attr"`
	Lon  gpxCoord `xml:"lon,attr"`
	Ele  *float64 `xml:"ele"`
	Time string   `xml:"time,omitempty"`
	Name string   `xml:"name,omitempty"`
}

func (p gpxPoint) toPoint() (Point, error) {
	c, err := geo.NewCoordinate(float64(p.Lat), float64(p.Lon))
	if err != nil {
		return Point{}, err
	}
	pt := Point{Coord: c, Elevation: p.Ele, Name: p.Name}
	if p.Time != "" {
		ts, err := time.Parse(time.RFC3339, p.Time)
		if err != nil {
			return Point{}, internal.NewError(internal.ErrorCodeDegenerate,
				fmt.Sprintf("bad timestamp %q", p.Time), err)
		}
		pt.Time = &ts
	}
	return pt, nil
}

func toGPXPoint(p Point) gpxPoint {
	gp := gpxPoint{
		Lat:  gpxCoord(p.Coord.Lat),
		Lon:  gpxCoord(p.Coord.Lon),
		Ele:  p.Elevation,
		Name: p.Name,
	}
	if p.Time != nil {
		gp.Time = p.Time.UTC().Format(time.RFC3339Nano)
	}
	return gp
}

// ReadGPX parses a GPX document. Each track segment becomes its own
// Track, the way GPS units separate stretches between signal losses.
func ReadGPX(r io.Reader) (*Document, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, internal.NewError(internal.ErrorCodeDegenerate, "cannot parse GPX", err)
	}

	d := &Document{}
	for _, w := range doc.Waypoints {
		pt, err := w.toPoint()
		if err != nil {
			return nil, err
		}
		d.Waypoints = append(d.Waypoints, Waypoint{
			Coord:     pt.Coord,
			Elevation: pt.Elevation,
			Time:      pt.Time,
			Name:      pt.Name,
		})
	}

	for _, trk := range doc.Tracks {
		for si, seg := range trk.Segments {
			if len(seg.Points) == 0 {
				continue
			}
			name := trk.Name
			if si > 0 && name != "" {
				name = fmt.Sprintf("%s (seg %d)", trk.Name, si+1)
			}
			t := &Track{Name: name}
			for _, gp := range seg.Points {
				pt, err := gp.toPoint()
				if err != nil {
					return nil, err
				}
				t.Points = append(t.Points, pt)
			}
			d.Tracks = append(d.Tracks, t)
		}
	}

	return d, nil
}

// WriteGPX serializes the document as GPX 1.1, one trk with a single
// trkseg per track.
func WriteGPX(w io.Writer, d *Document) error {
	doc := gpxDoc{
		Version: "1.1",
		Creator: "pytopo",
		Xmlns:   gpxNamespace,
	}
	for _, wp := range d.Waypoints {
		doc.Waypoints = append(doc.Waypoints, toGPXPoint(Point{
			Coord:     wp.Coord,
			Elevation: wp.Elevation,
			Time:      wp.Time,
			Name:      wp.Name,
		}))
	}
	for _, t := range d.Tracks {
		trk := gpxTrack{Name: t.Name, Segments: []gpxSeg{{}}}
		for _, p := range t.Points {
			trk.Segments[0].Points = append(trk.Segments[0].Points, toGPXPoint(p))
		}
		doc.Tracks = append(doc.Tracks, trk)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return internal.NewError(internal.ErrorCodeDegenerate, "cannot encode GPX", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
