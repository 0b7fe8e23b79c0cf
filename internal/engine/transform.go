package engine

import (
	"math"

	"seehuhn.de/go/geom/vec"
)

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

func V3(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (a Vec3) Add(b Vec3) Vec3         { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3         { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(s float64) Vec3      { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64      { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Length() float64         { return math.Sqrt(a.Dot(a)) }
func (a Vec3) IsZero(eps float64) bool { return a.Length() <= eps }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Normalize returns the unit vector in the direction of a, or a itself if
// it has zero length.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Mul(1 / l)
}

// Quat is a rotation quaternion. The zero value is not a valid rotation;
// use QuatIdentity.
type Quat struct {
	X, Y, Z, W float64
}

func QuatIdentity() Quat { return Quat{0, 0, 0, 1} }

// QuatAxisAngle returns the rotation by angle radians about axis.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalize()
	s := math.Sin(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(angle / 2)}
}

// QuatFromUnitVectors returns the shortest rotation taking unit vector
// from onto unit vector to.
func QuatFromUnitVectors(from, to Vec3) Quat {
	from = from.Normalize()
	to = to.Normalize()
	r := from.Dot(to) + 1
	if r < Epsilon {
		// Opposite vectors: rotate half a turn about any orthogonal axis.
		axis := Vec3{0, 0, 1}.Cross(from)
		if axis.IsZero(Epsilon) {
			axis = Vec3{1, 0, 0}.Cross(from)
		}
		return QuatAxisAngle(axis, math.Pi)
	}
	c := from.Cross(to)
	return Quat{c.X, c.Y, c.Z, r}.Normalize()
}

// Mul returns q*o: o is applied first, then q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Conjugate is the inverse of a unit quaternion.
func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(u.Cross(t))
}

// IsIdentity checks if q is a null rotation (within eps). q and -q
// describe the same rotation.
func (q Quat) IsIdentity(eps float64) bool {
	return math.Abs(q.X) < eps && math.Abs(q.Y) < eps && math.Abs(q.Z) < eps &&
		math.Abs(math.Abs(q.W)-1) < eps
}

// Frame is the placement of a canvas plane: world = Rotation*local + Translation.
type Frame struct {
	Rotation    Quat
	Translation Vec3
}

func IdentityFrame() Frame {
	return Frame{Rotation: QuatIdentity()}
}

// ToWorld maps the local plane point (u, v, 0) into world space.
func (f Frame) ToWorld(p vec.Vec2) Vec3 {
	return f.Rotation.Rotate(Vec3{p.X, p.Y, 0}).Add(f.Translation)
}

// ToLocal maps a world point into the plane's local frame. The returned
// depth is the signed distance from the plane; it is zero for points on
// the plane.
func (f Frame) ToLocal(w Vec3) (vec.Vec2, float64) {
	l := f.Rotation.Conjugate().Rotate(w.Sub(f.Translation))
	return vec.Vec2{X: l.X, Y: l.Y}, l.Z
}

// Normal returns the plane normal in world space.
func (f Frame) Normal() Vec3 {
	return f.Rotation.Rotate(Vec3{0, 0, 1})
}

// Translate moves the frame by t in world space.
func (f Frame) Translate(t Vec3) Frame {
	return Frame{Rotation: f.Rotation, Translation: f.Translation.Add(t)}
}

// RotateAbout rotates the whole frame by r around the world point center.
func (f Frame) RotateAbout(r Quat, center Vec3) Frame {
	return Frame{
		Rotation:    r.Mul(f.Rotation).Normalize(),
		Translation: r.Rotate(f.Translation.Sub(center)).Add(center),
	}
}

// IntersectRay returns the world point where the ray origin + s*dir (s > 0)
// meets the plane.
func (f Frame) IntersectRay(origin, dir Vec3) (Vec3, bool) {
	n := f.Normal()
	den := n.Dot(dir)
	if math.Abs(den) < Epsilon {
		return Vec3{}, false
	}
	s := n.Dot(f.Translation.Sub(origin)) / den
	if s <= 0 {
		return Vec3{}, false
	}
	return origin.Add(dir.Mul(s)), true
}

// rotate2 rotates p by theta radians around center.
func rotate2(p, center vec.Vec2, theta float64) vec.Vec2 {
	sin, cos := math.Sincos(theta)
	d := p.Sub(center)
	return vec.Vec2{
		X: center.X + d.X*cos - d.Y*sin,
		Y: center.Y + d.X*sin + d.Y*cos,
	}
}

// scale2 scales p by (sx, sy) around center.
func scale2(p, center vec.Vec2, sx, sy float64) vec.Vec2 {
	d := p.Sub(center)
	return vec.Vec2{X: center.X + sx*d.X, Y: center.Y + sy*d.Y}
}
