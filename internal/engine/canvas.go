package engine

import (
	"slices"

	"seehuhn.de/go/geom/vec"
)

// Canvas is a planar drawing surface placed anywhere in the scene. It owns
// its strokes and photos; their order is the drawing order and the row
// order shown by list views.
type Canvas struct {
	id      uint
	name    string
	frame   Frame
	strokes []*Stroke
	photos  []*Photo
	visible bool

	// Role flags mirror the scene's references and are maintained by the
	// scene only.
	current  bool
	previous bool
	selected bool
	editing  bool
	cloning  bool

	// selection is the set of entities picked for move/scale/rotate/push.
	selection []Entity
}

func newCanvas(id uint, name string, frame Frame) *Canvas {
	if name == "" {
		name = entityName("Canvas", id)
	}
	return &Canvas{
		id:      id,
		name:    name,
		frame:   frame,
		visible: true,
	}
}

func (c *Canvas) ID() uint      { return c.id }
func (c *Canvas) Name() string  { return c.name }
func (c *Canvas) Frame() Frame  { return c.frame }
func (c *Canvas) Visible() bool { return c.visible }

func (c *Canvas) IsCurrent() bool  { return c.current }
func (c *Canvas) IsPrevious() bool { return c.previous }
func (c *Canvas) IsSelected() bool { return c.selected }
func (c *Canvas) IsEditing() bool  { return c.editing }
func (c *Canvas) IsCloning() bool  { return c.cloning }

func (c *Canvas) setFrame(f Frame) { c.frame = f }

// ToWorld maps a local point of this canvas into world space.
func (c *Canvas) ToWorld(p vec.Vec2) Vec3 { return c.frame.ToWorld(p) }

// ToLocal projects a world point onto this canvas' local plane.
func (c *Canvas) ToLocal(w Vec3) vec.Vec2 {
	p, _ := c.frame.ToLocal(w)
	return p
}

// Strokes returns the canvas strokes in drawing order. The slice must not
// be modified.
func (c *Canvas) Strokes() []*Stroke { return c.strokes }

// Photos returns the canvas photos in drawing order. The slice must not be
// modified.
func (c *Canvas) Photos() []*Photo { return c.photos }

func (c *Canvas) StrokeIndex(s *Stroke) int { return slices.Index(c.strokes, s) }
func (c *Canvas) PhotoIndex(p *Photo) int   { return slices.Index(c.photos, p) }

// Photo returns the photo with the given id, or nil.
func (c *Canvas) Photo(id uint) *Photo {
	for _, p := range c.photos {
		if p.id == id {
			return p
		}
	}
	return nil
}

// Contains reports whether e is owned by this canvas.
func (c *Canvas) Contains(e Entity) bool {
	switch e := e.(type) {
	case *Stroke:
		return c.StrokeIndex(e) >= 0
	case *Photo:
		return c.PhotoIndex(e) >= 0
	}
	return false
}

// insert adds e at index, or at the end if index is out of range.
func (c *Canvas) insert(e Entity, index int) {
	switch e := e.(type) {
	case *Stroke:
		if index < 0 || index > len(c.strokes) {
			index = len(c.strokes)
		}
		c.strokes = slices.Insert(c.strokes, index, e)
	case *Photo:
		if index < 0 || index > len(c.photos) {
			index = len(c.photos)
		}
		c.photos = slices.Insert(c.photos, index, e)
	}
}

// remove detaches e and returns the index it had, or -1.
func (c *Canvas) remove(e Entity) int {
	c.Deselect(e)
	switch e := e.(type) {
	case *Stroke:
		i := c.StrokeIndex(e)
		if i >= 0 {
			c.strokes = slices.Delete(c.strokes, i, i+1)
		}
		return i
	case *Photo:
		i := c.PhotoIndex(e)
		if i >= 0 {
			c.photos = slices.Delete(c.photos, i, i+1)
		}
		return i
	}
	return -1
}

// indexOf returns the position of e in its typed collection.
func (c *Canvas) indexOf(e Entity) int {
	switch e := e.(type) {
	case *Stroke:
		return c.StrokeIndex(e)
	case *Photo:
		return c.PhotoIndex(e)
	}
	return -1
}

// IsSelectedEntity reports whether e is part of the selection.
func (c *Canvas) IsSelectedEntity(e Entity) bool {
	return slices.Contains(c.selection, e)
}

// Select adds e to the selection. Entities of other canvases are ignored.
func (c *Canvas) Select(e Entity) bool {
	if !c.Contains(e) {
		return false
	}
	if !slices.Contains(c.selection, e) {
		c.selection = append(c.selection, e)
	}
	return true
}

func (c *Canvas) Deselect(e Entity) {
	i := slices.Index(c.selection, e)
	if i < 0 {
		return
	}
	c.selection = slices.Delete(c.selection, i, i+1)
}

// SelectAll selects every stroke and photo.
func (c *Canvas) SelectAll() {
	for _, s := range c.strokes {
		c.Select(s)
	}
	for _, p := range c.photos {
		c.Select(p)
	}
}

func (c *Canvas) ClearSelection() {
	for len(c.selection) > 0 {
		c.Deselect(c.selection[len(c.selection)-1])
	}
}

// Selection returns a copy of the selected entities.
func (c *Canvas) Selection() []Entity {
	return slices.Clone(c.selection)
}

// SelectionCenter is the center of the selection's local bounds.
func (c *Canvas) SelectionCenter() vec.Vec2 {
	return selectionCenter(c.selection)
}
