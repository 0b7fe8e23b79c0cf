package engine

import (
	"cmp"
	"fmt"
	"slices"
)

// canvasMembership moves a canvas in and out of the scene. The role
// references around a detach are kept so that attach can give the canvas
// back the roles it held.
type canvasMembership struct {
	scene  *Scene
	canvas *Canvas
	index  int

	detached      bool
	before, after sceneRefs
}

func (m *canvasMembership) attach() {
	m.scene.insertCanvas(m.canvas, m.index)
	if m.detached {
		m.scene.reinstateRefs(m.canvas, m.before, m.after)
	}
}

func (m *canvasMembership) detach() {
	m.before = m.scene.refs
	m.index = m.scene.removeCanvas(m.canvas)
	m.after = m.scene.refs
	m.detached = true
}

type addCanvasCmd struct {
	membership canvasMembership
}

func (c *addCanvasCmd) Redo()        { c.membership.attach() }
func (c *addCanvasCmd) Undo()        { c.membership.detach() }
func (c *addCanvasCmd) Text() string { return "Add " + c.membership.canvas.name }

type deleteCanvasCmd struct {
	membership canvasMembership
}

func (c *deleteCanvasCmd) Redo()        { c.membership.detach() }
func (c *deleteCanvasCmd) Undo()        { c.membership.attach() }
func (c *deleteCanvasCmd) Text() string { return "Delete " + c.membership.canvas.name }

// entityMembership moves a stroke or photo in and out of a canvas at a
// fixed row.
type entityMembership struct {
	scene  *Scene
	canvas *Canvas
	entity Entity
	index  int
}

func (m *entityMembership) attach() { m.scene.insertEntity(m.canvas, m.entity, m.index) }
func (m *entityMembership) detach() { m.index = m.scene.removeEntity(m.canvas, m.entity) }

type addEntityCmd struct {
	entityMembership
}

func (c *addEntityCmd) Redo()        { c.attach() }
func (c *addEntityCmd) Undo()        { c.detach() }
func (c *addEntityCmd) Text() string { return "Add " + c.entity.EntityType().String() }

type deleteEntityCmd struct {
	entityMembership
}

func (c *deleteEntityCmd) Redo()        { c.detach() }
func (c *deleteEntityCmd) Undo()        { c.attach() }
func (c *deleteEntityCmd) Text() string { return "Delete " + c.entity.EntityType().String() }

// transformEntitiesCmd swaps between two recorded geometries of a set of
// entities.
type transformEntitiesCmd struct {
	scene    *Scene
	text     string
	entities []Entity
	before   []geometry
	after    []geometry
}

func (c *transformEntitiesCmd) apply(gs []geometry) {
	for i, e := range c.entities {
		e.restore(gs[i])
	}
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *transformEntitiesCmd) Redo()        { c.apply(c.after) }
func (c *transformEntitiesCmd) Undo()        { c.apply(c.before) }
func (c *transformEntitiesCmd) Text() string { return c.text }

// canvasFrameCmd swaps a canvas between two placements.
type canvasFrameCmd struct {
	scene  *Scene
	text   string
	canvas *Canvas
	before Frame
	after  Frame
}

func (c *canvasFrameCmd) apply(f Frame) {
	c.canvas.setFrame(f)
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *canvasFrameCmd) Redo()        { c.apply(c.after) }
func (c *canvasFrameCmd) Undo()        { c.apply(c.before) }
func (c *canvasFrameCmd) Text() string { return c.text }

// pushCmd moves entities from one canvas to another, changing their local
// geometry on the way.
type pushCmd struct {
	scene    *Scene
	from, to *Canvas
	entities []Entity
	indices  []int
	before   []geometry
	after    []geometry
}

func (c *pushCmd) Redo() {
	for i, e := range c.entities {
		c.from.remove(e)
		e.restore(c.after[i])
		c.to.insert(e, -1)
	}
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *pushCmd) Undo() {
	for i := len(c.entities) - 1; i >= 0; i-- {
		c.to.remove(c.entities[i])
	}
	// Reinsert in ascending row order so every row lands where it was.
	order := make([]int, len(c.entities))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return cmp.Compare(c.indices[a], c.indices[b]) })
	for _, i := range order {
		e := c.entities[i]
		e.restore(c.before[i])
		c.from.insert(e, c.indices[i])
	}
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *pushCmd) Text() string {
	return fmt.Sprintf("Push %d entities to %s", len(c.entities), c.to.name)
}

// eraseCmd replaces a stroke with the pieces that survived erasing.
type eraseCmd struct {
	scene    *Scene
	canvas   *Canvas
	original *Stroke
	index    int
	pieces   []*Stroke
}

func (c *eraseCmd) Redo() {
	c.canvas.remove(c.original)
	for i, p := range c.pieces {
		c.canvas.insert(p, c.index+i)
	}
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *eraseCmd) Undo() {
	for _, p := range c.pieces {
		c.canvas.remove(p)
	}
	c.canvas.insert(c.original, c.index)
	c.scene.notify(Notification{Type: UpdateRequested})
}

func (c *eraseCmd) Text() string { return "Erase stroke" }

type addBookmarkCmd struct {
	scene    *Scene
	bookmark *Bookmark
	row      int
}

func (c *addBookmarkCmd) Redo()        { c.scene.insertBookmark(c.bookmark, c.row) }
func (c *addBookmarkCmd) Undo()        { c.scene.removeBookmark(c.bookmark) }
func (c *addBookmarkCmd) Text() string { return "Add " + c.bookmark.name }

type deleteBookmarkCmd struct {
	scene    *Scene
	bookmark *Bookmark
	row      int
}

func (c *deleteBookmarkCmd) Redo()        { c.scene.removeBookmark(c.bookmark) }
func (c *deleteBookmarkCmd) Undo()        { c.scene.insertBookmark(c.bookmark, c.row) }
func (c *deleteBookmarkCmd) Text() string { return "Delete " + c.bookmark.name }

type updateBookmarkCmd struct {
	scene         *Scene
	bookmark      *Bookmark
	before, after CameraPose
}

func (c *updateBookmarkCmd) apply(p CameraPose) {
	c.bookmark.pose = p
	c.scene.notify(Notification{Type: BookmarksChanged})
}

func (c *updateBookmarkCmd) Redo()        { c.apply(c.after) }
func (c *updateBookmarkCmd) Undo()        { c.apply(c.before) }
func (c *updateBookmarkCmd) Text() string { return "Update " + c.bookmark.name }
