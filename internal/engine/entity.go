package engine

import (
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

type EntityType int

const (
	EntityStroke EntityType = iota
	EntityPhoto
)

func (t EntityType) String() string {
	switch t {
	case EntityStroke:
		return "stroke"
	case EntityPhoto:
		return "photo"
	default:
		return "unknown"
	}
}

// Entity is a 2D element living in a canvas' local plane.
type Entity interface {
	EntityType() EntityType
	MoveDelta(du, dv float64)
	Scale(sx, sy float64, center vec.Vec2)
	Rotate(theta float64, center vec.Vec2)
	// Bounds is the local-space axis aligned bounding box.
	Bounds() rect.Rect

	// snapshot captures the geometry so that restore can reproduce it
	// exactly.
	snapshot() geometry
	restore(geometry)
	// anchors are the local points a push re-projects.
	anchors() []vec.Vec2
	setAnchors([]vec.Vec2)
}

// geometry is an opaque copy of an entity's local geometry.
type geometry interface{}

// selectionCenter returns the center of the combined bounds of es.
func selectionCenter(es []Entity) vec.Vec2 {
	if len(es) == 0 {
		return vec.Vec2{}
	}
	b := es[0].Bounds()
	for _, e := range es[1:] {
		b = unionRect(b, e.Bounds())
	}
	return vec.Vec2{X: (b.LLx + b.URx) / 2, Y: (b.LLy + b.URy) / 2}
}

func unionRect(a, b rect.Rect) rect.Rect {
	return rect.Rect{
		LLx: min(a.LLx, b.LLx),
		LLy: min(a.LLy, b.LLy),
		URx: max(a.URx, b.URx),
		URy: max(a.URy, b.URy),
	}
}

func boundsOf(pts []vec.Vec2) rect.Rect {
	if len(pts) == 0 {
		return rect.Rect{}
	}
	r := rect.Rect{LLx: pts[0].X, LLy: pts[0].Y, URx: pts[0].X, URy: pts[0].Y}
	for _, p := range pts[1:] {
		r.LLx = min(r.LLx, p.X)
		r.LLy = min(r.LLy, p.Y)
		r.URx = max(r.URx, p.X)
		r.URy = max(r.URy, p.Y)
	}
	return r
}
