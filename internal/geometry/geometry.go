// Package geometry maps percentage-normalized zone rectangles onto pixel
// space and answers point containment queries for the analysis engine.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"resto-vision/internal/domain/vision"
)

var ErrInvalidCoords = errors.New("invalid zone coords")

// Rect is a zone rectangle in fractional coordinates (0..1).
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// DecodeCoords parses zone coordinates from the configuration store. Zones
// arrive either as a JSON-encoded string ("[0.1,0.1,0.5,0.5]") or already
// decoded into a numeric slice; both are accepted.
func DecodeCoords(raw interface{}) (Rect, error) {
	switch v := raw.(type) {
	case string:
		var vals []float64
		if err := json.Unmarshal([]byte(v), &vals); err != nil {
			return Rect{}, fmt.Errorf("%w: %v", ErrInvalidCoords, err)
		}
		return rectFromSlice(vals)
	case []byte:
		var vals []float64
		if err := json.Unmarshal(v, &vals); err != nil {
			return Rect{}, fmt.Errorf("%w: %v", ErrInvalidCoords, err)
		}
		return rectFromSlice(vals)
	case []float64:
		return rectFromSlice(v)
	case [4]float64:
		return Rect{v[0], v[1], v[2], v[3]}, nil
	case []interface{}:
		vals := make([]float64, 0, len(v))
		for _, e := range v {
			f, ok := e.(float64)
			if !ok {
				return Rect{}, fmt.Errorf("%w: non-numeric element", ErrInvalidCoords)
			}
			vals = append(vals, f)
		}
		return rectFromSlice(vals)
	case Rect:
		return v, nil
	default:
		return Rect{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidCoords, raw)
	}
}

func rectFromSlice(vals []float64) (Rect, error) {
	if len(vals) != 4 {
		return Rect{}, fmt.Errorf("%w: want 4 elements, got %d", ErrInvalidCoords, len(vals))
	}
	return Rect{vals[0], vals[1], vals[2], vals[3]}, nil
}

// Contains reports whether the point lies strictly inside the zone rectangle
// scaled to the frame dimensions. Boundary points are outside; coordinate
// ordering is taken as given.
func Contains(p vision.Point, r Rect, frameW, frameH int) bool {
	w, h := float64(frameW), float64(frameH)
	zx1, zy1 := r.X1*w, r.Y1*h
	zx2, zy2 := r.X2*w, r.Y2*h
	return zx1 < p.X && p.X < zx2 && zy1 < p.Y && p.Y < zy2
}
