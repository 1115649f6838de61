package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resto-vision/internal/domain/vision"
)

func TestContains(t *testing.T) {
	zone := Rect{0.25, 0.25, 0.75, 0.75}
	w, h := 1000, 800

	tests := []struct {
		name string
		p    vision.Point
		want bool
	}{
		{"center", vision.Point{X: 500, Y: 400}, true},
		{"just inside top-left", vision.Point{X: 251, Y: 201}, true},
		{"outside left", vision.Point{X: 100, Y: 400}, false},
		{"outside below", vision.Point{X: 500, Y: 700}, false},
		{"on left boundary", vision.Point{X: 250, Y: 400}, false},
		{"on right boundary", vision.Point{X: 750, Y: 400}, false},
		{"on top boundary", vision.Point{X: 500, Y: 200}, false},
		{"on bottom boundary", vision.Point{X: 500, Y: 600}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.p, zone, w, h))
		})
	}
}

func TestDecodeCoords(t *testing.T) {
	want := Rect{0.1, 0.2, 0.6, 0.9}

	tests := []struct {
		name    string
		raw     interface{}
		want    Rect
		wantErr bool
	}{
		{"json string", `[0.1,0.2,0.6,0.9]`, want, false},
		{"json bytes", []byte(`[0.1,0.2,0.6,0.9]`), want, false},
		{"float slice", []float64{0.1, 0.2, 0.6, 0.9}, want, false},
		{"interface slice", []interface{}{0.1, 0.2, 0.6, 0.9}, want, false},
		{"already a rect", want, want, false},
		{"malformed json", `[0.1,0.2`, Rect{}, true},
		{"wrong arity", `[0.1,0.2,0.6]`, Rect{}, true},
		{"non-numeric", []interface{}{"a", 0.2, 0.6, 0.9}, Rect{}, true},
		{"unsupported type", 42, Rect{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCoords(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCoords)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsReversedOrdering(t *testing.T) {
	// Reversed corner ordering must not panic; the strict test simply never
	// matches because x1*w < px < x2*w cannot hold when x1 > x2.
	r, err := DecodeCoords(`[0.75,0.75,0.25,0.25]`)
	require.NoError(t, err)
	assert.False(t, Contains(vision.Point{X: 500, Y: 400}, r, 1000, 800))
}
