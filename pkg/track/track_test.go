// pkg/track/track_test.go - Unit tests for the track model
package track

import (
	"testing"
	"time"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

func walkTrack(n int) *Track {
	t := &Track{Name: "walk", Color: "magenta"}
	base := time.Date(2023, 6, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		ele := 2100.0 + float64(i)
		t.Points = append(t.Points, Point{
			Coord:     geo.Coordinate{Lat: 35.8 + float64(i)*0.001, Lon: -106.3},
			Elevation: &ele,
			Time:      &ts,
		})
	}
	return t
}

func TestSplitAlgebra(t *testing.T) {
	orig := walkTrack(10)
	first, second, err := orig.Split(4)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if len(first.Points) != 5 || len(second.Points) != 6 {
		t.Errorf("Split lengths %d/%d, want 5/6", len(first.Points), len(second.Points))
	}
	// The cut point belongs to both halves.
	if first.Points[4].Coord != second.Points[0].Coord {
		t.Error("Halves do not share the boundary point")
	}
	if len(first.Points)+len(second.Points) != len(orig.Points)+1 {
		t.Error("Split must duplicate exactly the boundary point")
	}
	if len(orig.Points) != 10 {
		t.Error("Split modified the original track")
	}
	if first.Color != "magenta" || second.Color != "magenta" {
		t.Error("Split dropped display metadata")
	}

	// Mutating a half must not reach back into the original.
	first.Points[0].Coord = geo.Coordinate{Lat: 0, Lon: 0}
	if orig.Points[0].Coord.Lat == 0 {
		t.Error("Split halves share backing storage with the original")
	}
}

func TestSplitCopiesPointAttributes(t *testing.T) {
	orig := walkTrack(10)
	first, second, err := orig.Split(4)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	// The shared boundary point must not alias elevations or times
	// across the halves or back into the original.
	*first.Points[4].Elevation = -1
	*first.Points[4].Time = time.Time{}
	if *second.Points[0].Elevation == -1 {
		t.Error("Halves share an elevation pointer at the boundary")
	}
	if second.Points[0].Time.IsZero() {
		t.Error("Halves share a time pointer at the boundary")
	}
	if *orig.Points[4].Elevation == -1 || orig.Points[4].Time.IsZero() {
		t.Error("Editing a half reached the original track")
	}
}

func TestSplitRejectsBoundary(t *testing.T) {
	orig := walkTrack(10)
	for _, idx := range []int{-1, 0, 9, 10} {
		_, _, err := orig.Split(idx)
		if err == nil {
			t.Errorf("Split(%d) should fail", idx)
			continue
		}
		if !internal.HasCode(err, internal.ErrorCodeIndexRange) {
			t.Errorf("Split(%d) error = %v, want %s", idx, err, internal.ErrorCodeIndexRange)
		}
		if len(orig.Points) != 10 {
			t.Fatalf("Rejected Split(%d) modified the original", idx)
		}
	}
}

func TestTrim(t *testing.T) {
	orig := walkTrack(10)

	head, err := orig.TrimBefore(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(head.Points) != 7 || head.Points[0].Coord != orig.Points[3].Coord {
		t.Errorf("TrimBefore(3): %d points starting at %v", len(head.Points), head.Points[0].Coord)
	}

	tail, err := orig.TrimAfter(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail.Points) != 4 || tail.Points[3].Coord != orig.Points[3].Coord {
		t.Errorf("TrimAfter(3): %d points ending at %v", len(tail.Points), tail.Points[3].Coord)
	}

	if len(orig.Points) != 10 {
		t.Error("Trim modified the original track")
	}

	if _, err := orig.TrimBefore(10); !internal.HasCode(err, internal.ErrorCodeIndexRange) {
		t.Errorf("TrimBefore(10) error = %v, want %s", err, internal.ErrorCodeIndexRange)
	}
	if _, err := orig.TrimAfter(-1); !internal.HasCode(err, internal.ErrorCodeIndexRange) {
		t.Errorf("TrimAfter(-1) error = %v, want %s", err, internal.ErrorCodeIndexRange)
	}
}

func TestScrubTimes(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()
	good := time.Date(2023, 6, 10, 8, 5, 0, 0, time.UTC)

	tr := &Track{Points: []Point{
		{Coord: geo.Coordinate{Lat: 35.8, Lon: -106.3}, Time: &epoch},
		{Coord: geo.Coordinate{Lat: 35.81, Lon: -106.3}, Time: &good},
		{Coord: geo.Coordinate{Lat: 35.82, Lon: -106.3}, Time: &epoch},
		{Coord: geo.Coordinate{Lat: 35.83, Lon: -106.3}},
	}}
	tr.ScrubTimes()

	if tr.Points[0].Time != nil {
		t.Error("Leading bogus timestamp should be cleared")
	}
	if tr.Points[1].Time == nil || !tr.Points[1].Time.Equal(good) {
		t.Error("Valid timestamp should be untouched")
	}
	if tr.Points[2].Time == nil || !tr.Points[2].Time.Equal(good) {
		t.Error("Bogus timestamp should inherit the previous valid time")
	}
	if tr.Points[3].Time != nil {
		t.Error("Missing timestamp should stay missing")
	}
}

func TestDocumentBounds(t *testing.T) {
	d := &Document{
		Tracks: []*Track{walkTrack(5)},
		Waypoints: []Waypoint{
			{Coord: geo.Coordinate{Lat: 36.5, Lon: -105.0}, Name: "summit"},
		},
	}
	b := d.Bounds()
	if b.Empty() {
		t.Fatal("Bounds of a non-empty document is empty")
	}
	if b.MaxLat != 36.5 || b.MaxLon != -105.0 {
		t.Errorf("Bounds %+v should include the waypoint", b)
	}
	if b.MinLat != 35.8 {
		t.Errorf("Bounds %+v should include the first track point", b)
	}
}
