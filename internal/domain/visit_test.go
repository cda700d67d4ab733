package domain

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "17:30", want: 1050},
		{in: " 00:05 ", want: 5},
		{in: "24:00", want: 1440},
		{in: "24:01", wantErr: true},
		{in: "9", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "10:75", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(545); got != "09:05" {
		t.Fatalf("FormatClock(545) = %q, want 09:05", got)
	}
	w := TimeWindow{Earliest: 540, Latest: 1020}
	if got := w.String(); got != "09:00-17:00" {
		t.Fatalf("window string = %q", got)
	}
}

func TestTimeWindowValid(t *testing.T) {
	if !(TimeWindow{Earliest: 540, Latest: 540}).Valid() {
		t.Error("zero-width window should be valid")
	}
	if (TimeWindow{Earliest: 600, Latest: 540}).Valid() {
		t.Error("earliest after latest should be invalid")
	}
	if (TimeWindow{Earliest: -1, Latest: 540}).Valid() {
		t.Error("negative earliest should be invalid")
	}
}

func TestCoordinateValid(t *testing.T) {
	cases := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{Lat: 6.9271, Lng: 79.8612}, true},
		{Coordinate{}, false},
		{Coordinate{Lat: 91, Lng: 10}, false},
		{Coordinate{Lat: 10, Lng: -181}, false},
		{Coordinate{Lat: 0, Lng: 10}, true},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%v.Valid() = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestPairKeyIsDirectional(t *testing.T) {
	a := Coordinate{Lat: 6.9271, Lng: 79.8612}
	b := Coordinate{Lat: 6.9147, Lng: 79.8728}

	if PairKey(a, b) == PairKey(b, a) {
		t.Fatal("pair keys must differ by direction")
	}
	near := Coordinate{Lat: 6.927101, Lng: 79.861201}
	if PairKey(a, b) != PairKey(near, b) {
		t.Fatal("coordinates within rounding precision should share a key")
	}
}

func TestVisitDefaults(t *testing.T) {
	v := Visit{ID: "m1"}
	if v.ServiceDuration() != DefaultServiceMinutes {
		t.Fatalf("service = %d, want %d", v.ServiceDuration(), DefaultServiceMinutes)
	}
	if v.EarliestOr(540) != 540 {
		t.Fatal("visit without window should inherit fallback")
	}

	v.Window = &TimeWindow{Earliest: 600, Latest: 660}
	if v.EarliestOr(540) != 600 {
		t.Fatal("visit window earliest not used")
	}
}

func TestRouteVisitIDs(t *testing.T) {
	r := &Route{Stops: []RouteStop{
		{Visit: Visit{ID: "a"}, ArriveAt: 9 * time.Hour},
		{Visit: Visit{ID: "b"}, ArriveAt: 10 * time.Hour},
	}}
	ids := r.VisitIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestTravelMatrixUnresolved(t *testing.T) {
	m := NewTravelMatrix([]string{"depot", "a"})
	if m.Unresolved() != 4 {
		t.Fatalf("unresolved = %d, want 4", m.Unresolved())
	}
	m.Legs[0][1] = &TravelLeg{FromID: "depot", ToID: "a"}
	if m.Unresolved() != 3 {
		t.Fatalf("unresolved = %d, want 3", m.Unresolved())
	}
	if m.Leg(5, 0) != nil {
		t.Fatal("out-of-range leg should be nil")
	}
}
