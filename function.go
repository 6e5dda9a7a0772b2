package functions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Function type tags understood by the backend
const (
	TypeArray      = "ArrayTabulatedFunction"
	TypeLinkedList = "LinkedListTabulatedFunction"
)

// Types lists every function type tag the backend accepts
var Types = []string{TypeArray, TypeLinkedList}

// Function is a named, user-owned ordered collection of points. The client only
// ever holds transient copies of it.
type Function struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Points []Point   `json:"points"`
}

// PointRef returns the identifier used to address point i in requests. Points
// carry a server assigned id; when the backend omitted it the positional index
// is used, which is only meaningful inside this snapshot.
func (f Function) PointRef(i int) string {
	if i < 0 || i >= len(f.Points) {
		return ""
	}

	if f.Points[i].ID != uuid.Nil {
		return f.Points[i].ID.String()
	}

	return strconv.Itoa(i)
}

// Point is a single (x, y) pair of a function
type Point struct {
	ID uuid.UUID
	X  float64
	Y  float64
}

type pointJSON struct {
	ID   json.RawMessage `json:"id,omitempty"`
	X    json.RawMessage `json:"x,omitempty"`
	Y    json.RawMessage `json:"y,omitempty"`
	XVal json.RawMessage `json:"xVal,omitempty"`
	YVal json.RawMessage `json:"yVal,omitempty"`
}

// MarshalJSON writes the point in the backend's xVal/yVal shape
func (p Point) MarshalJSON() ([]byte, error) {
	out := struct {
		ID   *uuid.UUID `json:"id,omitempty"`
		XVal float64    `json:"xVal"`
		YVal float64    `json:"yVal"`
	}{XVal: p.X, YVal: p.Y}

	if p.ID != uuid.Nil {
		id := p.ID
		out.ID = &id
	}

	return json.Marshal(out)
}

// UnmarshalJSON accepts both the x/y and the xVal/yVal shapes, with each
// coordinate given either as a number or as a decimal string
func (p *Point) UnmarshalJSON(b []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	x, err := coordinate(raw.X, raw.XVal)
	if err != nil {
		return fmt.Errorf("invalid x: %w", err)
	}

	y, err := coordinate(raw.Y, raw.YVal)
	if err != nil {
		return fmt.Errorf("invalid y: %w", err)
	}

	*p = Point{X: x, Y: y}

	// older backends address points by index and send a number here
	var id string
	if json.Unmarshal(raw.ID, &id) == nil {
		if parsed, err := uuid.Parse(id); err == nil {
			p.ID = parsed
		}
	}

	return nil
}

func coordinate(short, long json.RawMessage) (float64, error) {
	v := long
	if len(bytes.TrimSpace(v)) == 0 || bytes.Equal(v, []byte("null")) {
		v = short
	}

	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return 0, fmt.Errorf("missing coordinate")
	}

	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}

		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}

	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, err
	}

	return f, nil
}

// ParsePoints parses the "x1,y1; x2,y2; ..." syntax used when creating a
// function. Empty segments are skipped.
func ParsePoints(s string) ([]Point, error) {
	var points []Point

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid point format: %s", pair)
		}

		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX != nil || errY != nil || !finite(x) || !finite(y) {
			return nil, fmt.Errorf("invalid point format: %s", pair)
		}

		points = append(points, Point{X: x, Y: y})
	}

	return points, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
