package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"
)

func strokeOf(pts ...float64) *Stroke {
	s := NewStroke()
	for i := 0; i+1 < len(pts); i += 2 {
		s.AppendPoint(pts[i], pts[i+1])
	}
	return s
}

func TestStrokeLength(t *testing.T) {
	assert.Zero(t, NewStroke().Length())
	assert.Zero(t, strokeOf(5, 5).Length())
	assert.InDelta(t, 3, strokeOf(0, 0, 3, 1).Length(), 1e-12)
	assert.InDelta(t, 4, strokeOf(0, 0, 1, 4, -1, 2).Length(), 1e-12)
}

func TestStrokeIsLengthy(t *testing.T) {
	assert.False(t, strokeOf(0, 0, 0, 0.001).IsLengthy())
	assert.False(t, strokeOf(0, 0, MinStrokeLength, 0).IsLengthy(), "length must exceed the minimum")
	assert.True(t, strokeOf(0, 0, 1, 0).IsLengthy())
}

func TestStrokeCheck(t *testing.T) {
	s := strokeOf(0, 0, 1, 1)
	require.NoError(t, s.Check())

	s.pts[1].Z = 0.5
	err := s.Check()
	assert.True(t, errors.Is(err, ErrGeometry))
	assert.Zero(t, s.Length())
}

func TestStrokeTransforms(t *testing.T) {
	s := strokeOf(0, 0, 2, 0)
	s.MoveDelta(1, 1)
	assert.Equal(t, []vec.Vec2{{X: 1, Y: 1}, {X: 3, Y: 1}}, s.Points())

	s.Scale(2, 1, vec.Vec2{X: 2, Y: 1})
	assert.Equal(t, []vec.Vec2{{X: 0, Y: 1}, {X: 4, Y: 1}}, s.Points())

	s.Rotate(math.Pi/2, vec.Vec2{X: 2, Y: 1})
	pts := s.Points()
	assert.InDelta(t, 2, pts[0].X, 1e-12)
	assert.InDelta(t, -1, pts[0].Y, 1e-12)
	assert.InDelta(t, 2, pts[1].X, 1e-12)
	assert.InDelta(t, 3, pts[1].Y, 1e-12)
}

func TestStrokeSlice(t *testing.T) {
	s := strokeOf(0, 0, 1, 0, 2, 0, 3, 0)
	s.SetColor(Color{1, 0, 0, 1})
	part := s.Slice(1, 2)
	assert.Equal(t, []vec.Vec2{{X: 1}, {X: 2}}, part.Points())
	assert.Equal(t, s.Color(), part.Color())

	part.MoveDelta(0, 1)
	assert.Equal(t, vec.Vec2{X: 1}, s.Points()[1], "slices do not share storage")
}

func TestPhotoAspect(t *testing.T) {
	p := newPhoto(3, "a.png", 200, 100)
	w, h := p.Size()
	assert.Equal(t, 1.0, w)
	assert.Equal(t, 0.5, h)
	assert.Equal(t, "Photo3", p.Name())

	p = newPhoto(4, "b.png", 0, 0)
	w, h = p.Size()
	assert.Equal(t, w, h)
}

func TestPhotoAnchors(t *testing.T) {
	p := newPhoto(0, "a.png", 100, 50)
	p.MoveDelta(1, 2)
	p.Rotate(0.3, vec.Vec2{})
	before := p.snapshot()
	p.setAnchors(p.anchors())
	after := p.snapshot().(photoGeometry)
	b := before.(photoGeometry)
	assert.InDelta(t, b.center.X, after.center.X, 1e-12)
	assert.InDelta(t, b.center.Y, after.center.Y, 1e-12)
	assert.InDelta(t, b.width, after.width, 1e-12)
	assert.InDelta(t, b.height, after.height, 1e-12)
	assert.InDelta(t, b.angle, after.angle, 1e-12)
}
