package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"
)

func TestMatrixMultiplyOrder(t *testing.T) {
	m := Translate(1, 0).Multiply(Scale(2, 3))
	p := m.Apply(vec.Vec2{X: 1, Y: 1})
	assert.Equal(t, vec.Vec2{X: 3, Y: 3}, p)
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(2, -1).Multiply(Rotate(0.7)).Multiply(Scale(2, 0.5))
	inv, ok := m.Invert()
	require.True(t, ok)
	p := inv.Apply(m.Apply(vec.Vec2{X: 0.3, Y: -4}))
	assert.InDelta(t, 0.3, p.X, 1e-12)
	assert.InDelta(t, -4, p.Y, 1e-12)

	_, ok = Scale(0, 1).Invert()
	assert.False(t, ok)
}

func TestPhotoMatrix(t *testing.T) {
	center := vec.Vec2{X: 1, Y: 2}
	m := PhotoMatrix(center, 2, 1, math.Pi/3)
	want := Translate(center.X, center.Y).
		Multiply(Rotate(math.Pi / 3)).
		Multiply(Scale(2, 1)).
		Multiply(Translate(-0.5, -0.5))
	for i := range m {
		assert.InDelta(t, want[i], m[i], 1e-12)
	}
	mid := m.Apply(vec.Vec2{X: 0.5, Y: 0.5})
	assert.InDelta(t, center.X, mid.X, 1e-12)
	assert.InDelta(t, center.Y, mid.Y, 1e-12)
}
