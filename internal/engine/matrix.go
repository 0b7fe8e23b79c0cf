package engine

import (
	"math"

	"seehuhn.de/go/geom/vec"
)

// Matrix2D represents a 2D affine transformation in a canvas plane.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
type Matrix2D [6]float64

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix (angle in radians).
func Rotate(radians float64) Matrix2D {
	sin, cos := math.Sincos(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m * other: other is applied first, then m.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],        // a
		m[1]*other[0] + m[3]*other[1],        // b
		m[0]*other[2] + m[2]*other[3],        // c
		m[1]*other[2] + m[3]*other[3],        // d
		m[0]*other[4] + m[2]*other[5] + m[4], // e
		m[1]*other[4] + m[3]*other[5] + m[5], // f
	}
}

// Apply transforms a point.
func (m Matrix2D) Apply(p vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix and false if it is singular.
func (m Matrix2D) Invert() (Matrix2D, bool) {
	det := m.Determinant()
	if math.Abs(det) < Epsilon*Epsilon {
		return Identity(), false
	}
	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}, true
}

// PhotoMatrix maps the unit image square [0,1]x[0,1] onto a photo's
// rectangle in its canvas plane. It composes
// Translate(center) * Rotate(angle) * Scale(width, height) * Translate(-0.5, -0.5).
func PhotoMatrix(center vec.Vec2, width, height, angle float64) Matrix2D {
	sin, cos := math.Sincos(angle)
	return Matrix2D{
		cos * width,                           // a
		sin * width,                           // b
		-sin * height,                         // c
		cos * height,                          // d
		center.X - 0.5*(cos*width-sin*height), // e
		center.Y - 0.5*(sin*width+cos*height), // f
	}
}

// ToSlice returns the matrix as a float64 slice for JSON serialization.
func (m Matrix2D) ToSlice() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}
