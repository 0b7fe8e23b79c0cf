package engine

import (
	"fmt"
	"log/slog"
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Stroke colors.
var (
	StrokeColorNormal   = Color{0, 0, 0, 1}
	StrokeColorSelected = Color{0.9, 0.35, 0.1, 1}
)

// Color is an RGBA color with components in [0, 1].
type Color [4]float32

// Stroke is one continuous pen gesture: an ordered polyline in the local
// plane of its canvas. Vertices keep a depth component so that imported
// data can be checked for lying off the plane; everything this package
// writes has depth 0.
type Stroke struct {
	pts   []Vec3
	color Color
	dirty bool
}

func NewStroke() *Stroke {
	return &Stroke{color: StrokeColorNormal}
}

// AppendPoint adds a point to the end of the stroke.
func (s *Stroke) AppendPoint(u, v float64) {
	s.pts = append(s.pts, Vec3{u, v, 0})
	s.dirty = true
}

// NumPoints returns the number of vertices.
func (s *Stroke) NumPoints() int { return len(s.pts) }

// Points returns a copy of the local vertices.
func (s *Stroke) Points() []vec.Vec2 {
	out := make([]vec.Vec2, len(s.pts))
	for i, p := range s.pts {
		out[i] = vec.Vec2{X: p.X, Y: p.Y}
	}
	return out
}

func (s *Stroke) Color() Color { return s.color }

func (s *Stroke) SetColor(c Color) {
	s.color = c
	s.dirty = true
}

// Dirty reports whether the geometry changed since the last ClearDirty.
func (s *Stroke) Dirty() bool { return s.dirty }
func (s *Stroke) ClearDirty() { s.dirty = false }

func (s *Stroke) EntityType() EntityType { return EntityStroke }

func (s *Stroke) Bounds() rect.Rect { return boundsOf(s.Points()) }

// Check verifies that every vertex lies in the canvas plane.
func (s *Stroke) Check() error {
	if len(s.pts) == 0 {
		return nil
	}
	zmin, zmax := s.pts[0].Z, s.pts[0].Z
	for _, p := range s.pts[1:] {
		zmin = min(zmin, p.Z)
		zmax = max(zmax, p.Z)
	}
	if math.Abs(zmax-zmin) > Epsilon {
		return fmt.Errorf("%w: stroke depth spans [%g, %g]", ErrGeometry, zmin, zmax)
	}
	return nil
}

// Length is the largest side of the stroke's bounding box. Strokes with
// fewer than two points, or with vertices off the plane, have length 0.
func (s *Stroke) Length() float64 {
	if len(s.pts) < 2 {
		return 0
	}
	if err := s.Check(); err != nil {
		slog.Warn("stroke length", "error", err)
		return 0
	}
	b := s.Bounds()
	return max(b.URx-b.LLx, b.URy-b.LLy)
}

// IsLengthy reports whether the stroke is long enough to keep.
func (s *Stroke) IsLengthy() bool {
	return s.Length() > MinStrokeLength
}

func (s *Stroke) MoveDelta(du, dv float64) {
	for i, p := range s.pts {
		s.pts[i] = Vec3{p.X + du, p.Y + dv, 0}
	}
	s.dirty = true
}

func (s *Stroke) Scale(sx, sy float64, center vec.Vec2) {
	for i, p := range s.pts {
		q := scale2(vec.Vec2{X: p.X, Y: p.Y}, center, sx, sy)
		s.pts[i] = Vec3{q.X, q.Y, 0}
	}
	s.dirty = true
}

// ScaleUniform scales by the same factor on both axes.
func (s *Stroke) ScaleUniform(k float64, center vec.Vec2) {
	s.Scale(k, k, center)
}

func (s *Stroke) Rotate(theta float64, center vec.Vec2) {
	for i, p := range s.pts {
		q := rotate2(vec.Vec2{X: p.X, Y: p.Y}, center, theta)
		s.pts[i] = Vec3{q.X, q.Y, 0}
	}
	s.dirty = true
}

// Slice returns a new stroke with the points in [first, last], same color.
func (s *Stroke) Slice(first, last int) *Stroke {
	out := &Stroke{color: s.color, dirty: true}
	out.pts = append([]Vec3(nil), s.pts[first:last+1]...)
	return out
}

type strokeGeometry []Vec3

func (s *Stroke) snapshot() geometry {
	return strokeGeometry(append([]Vec3(nil), s.pts...))
}

func (s *Stroke) restore(g geometry) {
	s.pts = append(s.pts[:0:0], g.(strokeGeometry)...)
	s.dirty = true
}

func (s *Stroke) anchors() []vec.Vec2 { return s.Points() }

func (s *Stroke) setAnchors(pts []vec.Vec2) {
	s.pts = s.pts[:0:0]
	for _, p := range pts {
		s.pts = append(s.pts, Vec3{p.X, p.Y, 0})
	}
	s.dirty = true
}
