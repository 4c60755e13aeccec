package geom

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

const square = `{"type":"Polygon","coordinates":[[[-70,-10],[-69,-10],[-69,-9],[-70,-9],[-70,-10]]]}`

func TestParse_PolygonMultiPolygonAndFeature(t *testing.T) {
	g, err := Parse([]byte(square))
	if err != nil {
		t.Fatalf("polygon: %v", err)
	}
	if _, ok := g.(orb.Polygon); !ok {
		t.Fatalf("got %T want orb.Polygon", g)
	}

	mp := `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}`
	g, err = Parse([]byte(mp))
	if err != nil {
		t.Fatalf("multipolygon: %v", err)
	}
	if got := len(Polygons(g)); got != 2 {
		t.Fatalf("polygons=%d want 2", got)
	}

	feat := `{"type":"Feature","properties":{"name":"Acre"},"geometry":` + square + `}`
	if _, err := Parse([]byte(feat)); err != nil {
		t.Fatalf("feature: %v", err)
	}
}

func TestParse_RejectsNonAreal(t *testing.T) {
	_, err := Parse([]byte(`{"type":"Point","coordinates":[1,2]}`))
	if !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("expected ErrUnsupportedGeometry, got %v", err)
	}
	if _, err := Parse([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}`)); err == nil {
		t.Fatal("expected error for degenerate ring")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBufferedBounds_ZeroLeavesBoundsAlone(t *testing.T) {
	g, _ := Parse([]byte(square))
	bb := BufferedBounds(g, 0)
	if bb.X1 != -70 || bb.Y1 != -10 || bb.X2 != -69 || bb.Y2 != -9 || bb.SRID != SRID {
		t.Fatalf("unexpected bounds %+v", bb)
	}
}

func TestBufferedBounds_ExpandsEverySide(t *testing.T) {
	g, _ := Parse([]byte(square))
	plain := BufferedBounds(g, 0)
	b1 := BufferedBounds(g, 1000)
	b5 := BufferedBounds(g, 5000)

	if !(b1.X1 < plain.X1 && b1.Y1 < plain.Y1 && b1.X2 > plain.X2 && b1.Y2 > plain.Y2) {
		t.Fatalf("1km buffer must expand every side: plain=%+v buffered=%+v", plain, b1)
	}
	if !(b5.X1 < b1.X1 && b5.Y2 > b1.Y2) {
		t.Fatalf("5km buffer must be larger than 1km: %+v vs %+v", b5, b1)
	}
	// ~1km is ~0.009 degrees of latitude
	if d := plain.Y1 - b1.Y1; d < 0.008 || d > 0.01 {
		t.Fatalf("unexpected latitude pad %f", d)
	}
}

func TestMergeAndFingerprint(t *testing.T) {
	a, _ := Parse([]byte(square))
	b, _ := Parse([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`))

	m := Merge(a, b)
	if _, ok := m.(orb.MultiPolygon); !ok {
		t.Fatalf("merge of two polygons must be a MultiPolygon, got %T", m)
	}
	if single := Merge(a); single.GeoJSONType() != "Polygon" {
		t.Fatalf("merge of one polygon must stay a Polygon")
	}

	f1, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	f2, _ := Fingerprint(a)
	f3, _ := Fingerprint(b)
	if f1 != f2 {
		t.Fatalf("fingerprint must be deterministic")
	}
	if f1 == f3 {
		t.Fatalf("different geometries must not share a fingerprint")
	}
}
