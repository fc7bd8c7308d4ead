package geo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/tastemap/restaurant-intel/internal/geo"
)

func TestDistanceMeters(t *testing.T) {
	cases := []struct {
		name string
		a, b geo.Coordinates
		want float64
	}{
		{
			name: "zero distance",
			a:    geo.Coordinates{Latitude: 13.7563, Longitude: 100.5018},
			b:    geo.Coordinates{Latitude: 13.7563, Longitude: 100.5018},
			want: 0,
		},
		{
			name: "one degree latitude",
			a:    geo.Coordinates{Latitude: 0, Longitude: 0},
			b:    geo.Coordinates{Latitude: 1, Longitude: 0},
			want: 111194.9,
		},
		{
			name: "one degree longitude at equator",
			a:    geo.Coordinates{Latitude: 0, Longitude: 0},
			b:    geo.Coordinates{Latitude: 0, Longitude: 1},
			want: 111194.9,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := geo.DistanceMeters(tc.a, tc.b)
			if err != nil {
				t.Fatalf("DistanceMeters: %v", err)
			}
			if tc.want == 0 {
				if got != 0 {
					t.Fatalf("want 0, got %v", got)
				}
				return
			}
			// accuracy requirement: within 0.5% at this scale
			if math.Abs(got-tc.want)/tc.want > 0.005 {
				t.Fatalf("want ~%v, got %v", tc.want, got)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := geo.Coordinates{Latitude: 13.7563, Longitude: 100.5018}
	b := geo.Coordinates{Latitude: 13.7469, Longitude: 100.5389}
	d1, err := geo.DistanceMeters(a, b)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := geo.DistanceMeters(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceMetersInvalidInput(t *testing.T) {
	valid := geo.Coordinates{Latitude: 13.7563, Longitude: 100.5018}
	invalid := []geo.Coordinates{
		{Latitude: 91, Longitude: 0},
		{Latitude: -91, Longitude: 0},
		{Latitude: 0, Longitude: 181},
		{Latitude: 0, Longitude: -181},
		{Latitude: math.NaN(), Longitude: 0},
	}
	for _, bad := range invalid {
		if _, err := geo.DistanceMeters(valid, bad); !errors.Is(err, geo.ErrInvalidCoordinate) {
			t.Errorf("coordinates %+v: want ErrInvalidCoordinate, got %v", bad, err)
		}
		if _, err := geo.DistanceMeters(bad, valid); !errors.Is(err, geo.ErrInvalidCoordinate) {
			t.Errorf("coordinates %+v: want ErrInvalidCoordinate, got %v", bad, err)
		}
	}
}

func TestIsWithinRadius(t *testing.T) {
	center := geo.Coordinates{Latitude: 0, Longitude: 0}
	point := geo.Coordinates{Latitude: 0.01, Longitude: 0} // ~1112m north

	within, err := geo.IsWithinRadius(center, point, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if !within {
		t.Fatal("point ~1112m away should be within 2000m")
	}

	within, err = geo.IsWithinRadius(center, point, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if within {
		t.Fatal("point ~1112m away should not be within 1000m")
	}
}
