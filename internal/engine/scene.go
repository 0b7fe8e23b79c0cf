package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cherish/cherish/backend-go/internal/undo"
)

// canvasRef is a non-owning reference to a canvas by id. It is resolved
// against the scene on every access, so a deleted canvas reads as nil.
type canvasRef struct {
	id  uint
	set bool
}

func refTo(c *Canvas) canvasRef {
	if c == nil {
		return canvasRef{}
	}
	return canvasRef{id: c.id, set: true}
}

// sceneRefs is a copy of every role reference, used to restore them on undo.
type sceneRefs struct {
	current, previous, selected, target, clone canvasRef
}

// Scene is the document root. It owns all canvases and bookmarks and
// tracks the current, previous, selected, target and clone-source roles.
// A Scene is not safe for concurrent use; all access happens on one
// goroutine.
type Scene struct {
	canvases  []*Canvas
	bookmarks []*Bookmark
	refs      sceneRefs

	idCanvas   uint
	idPhoto    uint
	idBookmark uint

	filePath string
	notifier *notifier
}

func NewScene() *Scene {
	return &Scene{notifier: &notifier{}}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Scene) Subscribe(fn func(Notification)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *Scene) notify(n Notification) { s.notifier.publish(n) }

// RequestUpdate asks views to redraw, for changes such as the selection
// that send no notification of their own.
func (s *Scene) RequestUpdate() { s.notify(Notification{Type: UpdateRequested}) }

// --- File path and counters ---

func (s *Scene) FilePath() string        { return s.filePath }
func (s *Scene) SetFilePath(path string) { s.filePath = path }
func (s *Scene) HasFilePath() bool       { return s.filePath != "" }

// NextCanvasID returns the id the next canvas will get.
func (s *Scene) NextCanvasID() uint   { return s.idCanvas }
func (s *Scene) NextPhotoID() uint    { return s.idPhoto }
func (s *Scene) NextBookmarkID() uint { return s.idBookmark }

func (s *Scene) allocCanvasID() uint {
	id := s.idCanvas
	s.idCanvas++
	return id
}

func (s *Scene) allocPhotoID() uint {
	id := s.idPhoto
	s.idPhoto++
	return id
}

func (s *Scene) allocBookmarkID() uint {
	id := s.idBookmark
	s.idBookmark++
	return id
}

// --- Canvas lookup ---

// Canvases returns the canvases in display order. The slice must not be
// modified.
func (s *Scene) Canvases() []*Canvas { return s.canvases }

func (s *Scene) NumCanvases() int { return len(s.canvases) }

func (s *Scene) IsEmpty() bool { return len(s.canvases) == 0 && len(s.bookmarks) == 0 }

// Canvas returns the canvas with the given id, or nil.
func (s *Scene) Canvas(id uint) *Canvas {
	for _, c := range s.canvases {
		if c.id == id {
			return c
		}
	}
	return nil
}

// CanvasByName returns the first canvas with the given name, or nil.
func (s *Scene) CanvasByName(name string) *Canvas {
	for _, c := range s.canvases {
		if c.name == name {
			return c
		}
	}
	return nil
}

// CanvasAt returns the canvas at display row, or nil.
func (s *Scene) CanvasAt(row int) *Canvas {
	if row < 0 || row >= len(s.canvases) {
		return nil
	}
	return s.canvases[row]
}

// CanvasIndex returns the display row of c, or -1.
func (s *Scene) CanvasIndex(c *Canvas) int {
	if c == nil {
		return -1
	}
	return slices.Index(s.canvases, c)
}

// PhotoIndex returns the row of photo within canvas, or -1.
func (s *Scene) PhotoIndex(photo *Photo, canvas *Canvas) int {
	if s.CanvasIndex(canvas) < 0 {
		return -1
	}
	return canvas.PhotoIndex(photo)
}

func (s *Scene) owns(c *Canvas) bool { return s.CanvasIndex(c) >= 0 }

// OwnerOf returns the canvas holding e, or nil.
func (s *Scene) OwnerOf(e Entity) *Canvas {
	for _, c := range s.canvases {
		if c.Contains(e) {
			return c
		}
	}
	return nil
}

// --- Roles ---

func (s *Scene) resolve(r canvasRef) *Canvas {
	if !r.set {
		return nil
	}
	return s.Canvas(r.id)
}

func (s *Scene) Current() *Canvas     { return s.resolve(s.refs.current) }
func (s *Scene) Previous() *Canvas    { return s.resolve(s.refs.previous) }
func (s *Scene) Selected() *Canvas    { return s.resolve(s.refs.selected) }
func (s *Scene) Target() *Canvas      { return s.resolve(s.refs.target) }
func (s *Scene) CloneSource() *Canvas { return s.resolve(s.refs.clone) }

// SetCanvasCurrent makes c the current canvas and moves the old current one
// to previous. It is a no-op if c is already current, and fails if c is
// nil or not part of this scene.
func (s *Scene) SetCanvasCurrent(c *Canvas) bool {
	if c == nil || !s.owns(c) {
		return false
	}
	cur := s.Current()
	if cur == c {
		return true
	}
	if cur != nil {
		s.refs.previous = refTo(cur)
	}
	s.refs.current = refTo(c)
	s.syncRoles()
	return true
}

// SetCanvasPrevious sets the previous canvas; it must differ from current.
func (s *Scene) SetCanvasPrevious(c *Canvas) bool {
	if c == nil || !s.owns(c) || c == s.Current() {
		return false
	}
	s.refs.previous = refTo(c)
	s.syncRoles()
	return true
}

// SetCanvasSelected marks c as the selected canvas; nil clears it.
func (s *Scene) SetCanvasSelected(c *Canvas) bool {
	if c != nil && !s.owns(c) {
		return false
	}
	s.refs.selected = refTo(c)
	s.syncRoles()
	return true
}

// SetCanvasTarget sets the canvas entities are pushed to; nil clears it.
func (s *Scene) SetCanvasTarget(c *Canvas) bool {
	if c != nil && !s.owns(c) {
		return false
	}
	s.refs.target = refTo(c)
	return true
}

func (s *Scene) setCloneSource(c *Canvas) {
	s.refs.clone = refTo(c)
	s.syncRoles()
}

func (s *Scene) setEditing(c *Canvas, on bool) {
	if c != nil {
		c.editing = on
	}
}

// reinstateRefs gives c back the roles it held in before, the references
// saved just ahead of its removal. If no role changed since the removal
// left them as after, before is restored whole. Otherwise roles set since
// then are kept, except that c takes the current role back and the
// canvas holding it becomes previous.
func (s *Scene) reinstateRefs(c *Canvas, before, after sceneRefs) {
	if s.refs == after {
		s.refs = before
		s.syncRoles()
		return
	}

	ref := refTo(c)
	r := &s.refs
	if before.current == ref {
		if r.current.set && r.current != ref {
			r.previous = r.current
		}
		r.current = ref
	}
	if before.previous == ref && !r.previous.set && r.current != ref {
		r.previous = ref
	}
	for _, role := range []struct {
		saved canvasRef
		now   *canvasRef
	}{
		{before.selected, &r.selected},
		{before.target, &r.target},
		{before.clone, &r.clone},
	} {
		if role.saved == ref && !role.now.set {
			*role.now = ref
		}
	}
	s.syncRoles()
}

// syncRoles copies the role references onto the canvas flags and reports
// display role changes.
func (s *Scene) syncRoles() {
	cur, prev, sel, clone := s.Current(), s.Previous(), s.Selected(), s.CloneSource()
	for i, c := range s.canvases {
		before := c.Role()
		c.current = c == cur
		c.previous = c == prev
		c.selected = c == sel
		c.cloning = c == clone
		if after := c.Role(); after != before {
			s.notify(Notification{Type: CanvasRoleChanged, CanvasIndex: i, Role: after})
		}
	}
}

// Role returns the display role of the canvas.
func (c *Canvas) Role() CanvasRole {
	switch {
	case c.current:
		return RoleCurrent
	case c.previous:
		return RolePrevious
	case c.selected:
		return RoleSelected
	default:
		return RoleNormal
	}
}

// --- Visibility ---

// SetCanvasesButCurrent shows or hides every canvas except the current one.
func (s *Scene) SetCanvasesButCurrent(visible bool) {
	cur := s.Current()
	for _, c := range s.canvases {
		if c != cur {
			c.visible = visible
		}
	}
	s.notify(Notification{Type: UpdateRequested})
}

// CanvasesButCurrentVisible reports whether any non-current canvas is shown.
func (s *Scene) CanvasesButCurrentVisible() bool {
	cur := s.Current()
	for _, c := range s.canvases {
		if c != cur && c.visible {
			return true
		}
	}
	return false
}

func (s *Scene) SetCanvasVisibility(c *Canvas, visible bool) bool {
	if !s.owns(c) {
		return false
	}
	c.visible = visible
	s.notify(Notification{Type: UpdateRequested})
	return true
}

// --- Structural mutation, used by commands ---

// insertCanvas adds c at index (or at the end) without touching roles.
func (s *Scene) insertCanvas(c *Canvas, index int) {
	if index < 0 || index > len(s.canvases) {
		index = len(s.canvases)
	}
	s.canvases = slices.Insert(s.canvases, index, c)
	s.notify(Notification{Type: CanvasAdded, Name: c.name, CanvasIndex: index})
	for _, p := range c.photos {
		s.notify(Notification{Type: PhotoAdded, Name: p.name, CanvasIndex: index})
	}
}

// removeCanvas detaches c and re-resolves every role reference so none of
// them points at it. It returns the row c had, or -1.
func (s *Scene) removeCanvas(c *Canvas) int {
	index := s.CanvasIndex(c)
	if index < 0 {
		return -1
	}
	wasCurrent := s.Current() == c
	s.canvases = slices.Delete(s.canvases, index, index+1)
	c.current, c.previous, c.selected, c.editing, c.cloning = false, false, false, false, false

	if wasCurrent {
		next := s.Previous()
		if next == nil && len(s.canvases) > 0 {
			next = s.canvases[0]
		}
		s.refs.current = refTo(next)
		s.refs.previous = canvasRef{}
	}
	for _, r := range []*canvasRef{&s.refs.previous, &s.refs.selected, &s.refs.target, &s.refs.clone} {
		if r.set && r.id == c.id {
			*r = canvasRef{}
		}
	}
	if len(s.canvases) == 0 {
		s.refs = sceneRefs{}
	}

	s.notify(Notification{Type: CanvasRemoved, CanvasIndex: index})
	s.syncRoles()
	return index
}

func (s *Scene) insertEntity(c *Canvas, e Entity, index int) {
	c.insert(e, index)
	if p, ok := e.(*Photo); ok {
		s.notify(Notification{Type: PhotoAdded, Name: p.name, CanvasIndex: s.CanvasIndex(c)})
	}
	s.notify(Notification{Type: UpdateRequested})
}

func (s *Scene) removeEntity(c *Canvas, e Entity) int {
	index := c.remove(e)
	if p, ok := e.(*Photo); ok && index >= 0 {
		s.notify(Notification{Type: PhotoRemoved, Name: p.name, CanvasIndex: s.CanvasIndex(c)})
	}
	s.notify(Notification{Type: UpdateRequested})
	return index
}

// commit runs cmd and records it on stack. A nil stack applies the change
// without history.
func commit(stack *undo.Stack, cmd undo.Command) {
	if stack == nil {
		cmd.Redo()
		return
	}
	stack.Execute(cmd)
}

// record stores an already applied cmd on stack.
func record(stack *undo.Stack, cmd undo.Command) {
	if stack != nil {
		stack.Push(cmd)
	}
}

// --- Edits ---

// AddCanvas creates a canvas with the given placement. An empty name
// derives one from the id. The new canvas does not become current.
func (s *Scene) AddCanvas(stack *undo.Stack, frame Frame, name string) *Canvas {
	c := newCanvas(s.allocCanvasID(), name, frame)
	commit(stack, &addCanvasCmd{membership: canvasMembership{scene: s, canvas: c, index: -1}})
	slog.Debug("canvas added", "canvas", c.name)
	return c
}

// AddCanvasNormal creates a canvas through center whose plane normal is
// normal.
func (s *Scene) AddCanvasNormal(stack *undo.Stack, normal, center Vec3) *Canvas {
	frame := Frame{
		Rotation:    QuatFromUnitVectors(Vec3{0, 0, 1}, normal),
		Translation: center,
	}
	return s.AddCanvas(stack, frame, "")
}

// duplicateCanvas returns a detached copy of src with fresh canvas and
// photo ids. Strokes keep their color; the selection is not copied.
func (s *Scene) duplicateCanvas(src *Canvas) *Canvas {
	c := newCanvas(s.allocCanvasID(), "", src.frame)
	c.visible = src.visible
	for _, st := range src.strokes {
		c.strokes = append(c.strokes, st.Slice(0, st.NumPoints()-1))
	}
	for _, p := range src.photos {
		cp := *p
		cp.id = s.allocPhotoID()
		cp.name = entityName("Photo", cp.id)
		c.photos = append(c.photos, &cp)
	}
	return c
}

// DeleteCanvas removes c together with its entities as one undoable edit.
func (s *Scene) DeleteCanvas(stack *undo.Stack, c *Canvas) error {
	if c == nil || !s.owns(c) {
		return ErrNotOwned
	}
	commit(stack, &deleteCanvasCmd{membership: canvasMembership{scene: s, canvas: c, index: s.CanvasIndex(c)}})
	slog.Debug("canvas deleted", "canvas", c.name)
	return nil
}

// AddPhoto places a new photo at the center of the current canvas.
// pxWidth and pxHeight give the image aspect; zero means square.
func (s *Scene) AddPhoto(stack *undo.Stack, path string, pxWidth, pxHeight int) (*Photo, error) {
	c := s.Current()
	if c == nil {
		return nil, ErrNoCurrentCanvas
	}
	p := newPhoto(s.allocPhotoID(), path, pxWidth, pxHeight)
	commit(stack, &addEntityCmd{entityMembership{scene: s, canvas: c, entity: p, index: -1}})
	return p, nil
}

// LoadPhotoFromFile reads the image size from path and adds it as a photo
// to the current canvas.
func (s *Scene) LoadPhotoFromFile(stack *undo.Stack, path string) (*Photo, error) {
	if s.Current() == nil {
		return nil, ErrNoCurrentCanvas
	}
	w, h, err := ImageSize(path)
	if err != nil {
		return nil, err
	}
	return s.AddPhoto(stack, path, w, h)
}

// DeleteStroke removes a stroke from whichever canvas holds it.
func (s *Scene) DeleteStroke(stack *undo.Stack, stroke *Stroke) error {
	return s.deleteEntity(stack, stroke)
}

// DeletePhoto removes a photo from whichever canvas holds it.
func (s *Scene) DeletePhoto(stack *undo.Stack, photo *Photo) error {
	return s.deleteEntity(stack, photo)
}

func (s *Scene) deleteEntity(stack *undo.Stack, e Entity) error {
	c := s.OwnerOf(e)
	if c == nil {
		return ErrNotOwned
	}
	commit(stack, &deleteEntityCmd{entityMembership{scene: s, canvas: c, entity: e, index: c.indexOf(e)}})
	return nil
}

// PushSelection moves the selected entities of the current canvas onto the
// target canvas. Every anchor point travels along the ray from the camera
// eye through its world position; rays parallel to the target plane fall
// back to an orthogonal projection.
func (s *Scene) PushSelection(stack *undo.Stack, eye Vec3) error {
	from := s.Current()
	if from == nil {
		return ErrNoCurrentCanvas
	}
	to := s.Target()
	if to == nil || to == from {
		return ErrNoTarget
	}
	sel := from.Selection()
	if len(sel) == 0 {
		return ErrNoSelection
	}

	cmd := &pushCmd{scene: s, from: from, to: to}
	for _, e := range sel {
		before := e.snapshot()
		pts := e.anchors()
		for i, p := range pts {
			w := from.ToWorld(p)
			if hit, ok := to.frame.IntersectRay(eye, w.Sub(eye)); ok {
				w = hit
			}
			pts[i] = to.ToLocal(w)
		}
		e.setAnchors(pts)
		after := e.snapshot()
		e.restore(before)

		cmd.entities = append(cmd.entities, e)
		cmd.indices = append(cmd.indices, from.indexOf(e))
		cmd.before = append(cmd.before, before)
		cmd.after = append(cmd.after, after)
	}
	commit(stack, cmd)
	return nil
}

// --- Bookmarks ---

// Bookmarks returns the bookmarks in row order. The slice must not be
// modified.
func (s *Scene) Bookmarks() []*Bookmark { return s.bookmarks }

func (s *Scene) AddBookmark(stack *undo.Stack, pose CameraPose) *Bookmark {
	id := s.allocBookmarkID()
	b := &Bookmark{id: id, name: entityName("Bookmark", id), pose: pose}
	commit(stack, &addBookmarkCmd{scene: s, bookmark: b, row: len(s.bookmarks)})
	return b
}

func (s *Scene) UpdateBookmark(stack *undo.Stack, row int, pose CameraPose) error {
	if row < 0 || row >= len(s.bookmarks) {
		return fmt.Errorf("update bookmark %d: %w", row, ErrBookmarkRange)
	}
	b := s.bookmarks[row]
	commit(stack, &updateBookmarkCmd{scene: s, bookmark: b, before: b.pose, after: pose})
	return nil
}

func (s *Scene) DeleteBookmark(stack *undo.Stack, row int) error {
	if row < 0 || row >= len(s.bookmarks) {
		return fmt.Errorf("delete bookmark %d: %w", row, ErrBookmarkRange)
	}
	commit(stack, &deleteBookmarkCmd{scene: s, bookmark: s.bookmarks[row], row: row})
	return nil
}

// Clear removes all content and resets the counters. It is not undoable;
// callers clear the command stack too.
func (s *Scene) Clear() {
	for len(s.canvases) > 0 {
		s.removeCanvas(s.canvases[len(s.canvases)-1])
	}
	s.bookmarks = nil
	s.refs = sceneRefs{}
	s.idCanvas, s.idPhoto, s.idBookmark = 0, 0, 0
	s.filePath = ""
	s.notify(Notification{Type: BookmarksChanged})
}

func (s *Scene) insertBookmark(b *Bookmark, row int) {
	if row < 0 || row > len(s.bookmarks) {
		row = len(s.bookmarks)
	}
	s.bookmarks = slices.Insert(s.bookmarks, row, b)
	s.notify(Notification{Type: BookmarksChanged})
}

func (s *Scene) removeBookmark(b *Bookmark) {
	if i := slices.Index(s.bookmarks, b); i >= 0 {
		s.bookmarks = slices.Delete(s.bookmarks, i, i+1)
	}
	s.notify(Notification{Type: BookmarksChanged})
}
