package engine

import (
	"log/slog"
	"math"

	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/undo"
)

// State is the state of an edit session. Sessions rest in StateIdle,
// run in StateActive and end every gesture in StateCommitted or
// StateAborted before returning to StateIdle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// machine is the state shared by all sessions.
type machine struct {
	state State
	last  State
}

// State returns StateIdle or StateActive.
func (m *machine) State() State { return m.state }

// Last returns how the previous gesture ended.
func (m *machine) Last() State { return m.last }

func (m *machine) Active() bool { return m.state == StateActive }

func (m *machine) canStart() error {
	if m.state == StateActive {
		return ErrSessionActive
	}
	return nil
}

func (m *machine) mustBeActive() error {
	if m.state != StateActive {
		return ErrSessionIdle
	}
	return nil
}

func (m *machine) end(outcome State, family string) State {
	m.state = StateIdle
	m.last = outcome
	slog.Debug("edit finished", "session", family, "outcome", outcome)
	return outcome
}

// SketchSession draws one stroke on the current canvas.
type SketchSession struct {
	machine
	scene  *Scene
	canvas *Canvas
	stroke *Stroke
}

func NewSketchSession(scene *Scene) *SketchSession {
	return &SketchSession{scene: scene}
}

// Stroke returns the stroke being drawn, or nil when idle.
func (s *SketchSession) Stroke() *Stroke { return s.stroke }

func (s *SketchSession) Start() error {
	if err := s.canStart(); err != nil {
		return err
	}
	c := s.scene.Current()
	if c == nil {
		return ErrNoCurrentCanvas
	}
	s.canvas = c
	s.stroke = NewStroke()
	c.insert(s.stroke, -1)
	s.state = StateActive
	return nil
}

func (s *SketchSession) Append(u, v float64) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	s.stroke.AppendPoint(u, v)
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

// Finish keeps the stroke if it is long enough and records it on stack.
func (s *SketchSession) Finish(stack *undo.Stack) (State, error) {
	if err := s.mustBeActive(); err != nil {
		return StateIdle, err
	}
	defer s.reset()
	if !s.scene.owns(s.canvas) || !s.stroke.IsLengthy() {
		s.canvas.remove(s.stroke)
		return s.end(StateAborted, "sketch"), nil
	}
	index := s.canvas.StrokeIndex(s.stroke)
	record(stack, &addEntityCmd{entityMembership{scene: s.scene, canvas: s.canvas, entity: s.stroke, index: index}})
	s.scene.notify(Notification{Type: UpdateRequested})
	return s.end(StateCommitted, "sketch"), nil
}

// Abort discards the stroke.
func (s *SketchSession) Abort() State {
	if !s.Active() {
		return StateIdle
	}
	s.canvas.remove(s.stroke)
	s.reset()
	return s.end(StateAborted, "sketch")
}

func (s *SketchSession) reset() {
	s.canvas = nil
	s.stroke = nil
}

// selectionEdit is the common part of move, scale and rotate: it snapshots
// the selection of the current canvas and commits one command with the
// before and after geometry of every entity.
type selectionEdit struct {
	machine
	scene    *Scene
	canvas   *Canvas
	entities []Entity
	before   []geometry
	center   vec.Vec2
}

func (e *selectionEdit) start() error {
	if err := e.canStart(); err != nil {
		return err
	}
	c := e.scene.Current()
	if c == nil {
		return ErrNoCurrentCanvas
	}
	sel := c.Selection()
	if len(sel) == 0 {
		return ErrNoSelection
	}
	e.canvas = c
	e.entities = sel
	e.before = make([]geometry, len(sel))
	for i, en := range sel {
		e.before[i] = en.snapshot()
	}
	e.center = selectionCenter(sel)
	e.state = StateActive
	return nil
}

// live reports whether the edited canvas and all entities still exist.
func (e *selectionEdit) live() bool {
	if !e.scene.owns(e.canvas) {
		return false
	}
	for _, en := range e.entities {
		if !e.canvas.Contains(en) {
			return false
		}
	}
	return true
}

func (e *selectionEdit) rollback() {
	for i, en := range e.entities {
		en.restore(e.before[i])
	}
	e.scene.notify(Notification{Type: UpdateRequested})
}

func (e *selectionEdit) finish(stack *undo.Stack, identity bool, family, text string) (State, error) {
	if err := e.mustBeActive(); err != nil {
		return StateIdle, err
	}
	defer e.reset()
	if identity || !e.live() {
		e.rollback()
		return e.end(StateAborted, family), nil
	}
	cmd := &transformEntitiesCmd{
		scene:    e.scene,
		text:     text,
		entities: e.entities,
		before:   e.before,
		after:    make([]geometry, len(e.entities)),
	}
	for i, en := range e.entities {
		cmd.after[i] = en.snapshot()
	}
	record(stack, cmd)
	return e.end(StateCommitted, family), nil
}

func (e *selectionEdit) abort(family string) State {
	if !e.Active() {
		return StateIdle
	}
	e.rollback()
	e.reset()
	return e.end(StateAborted, family)
}

func (e *selectionEdit) reset() {
	e.canvas = nil
	e.entities = nil
	e.before = nil
}

// Center is the pivot of scale and rotate: the center of the selection
// bounds when the session started.
func (e *selectionEdit) Center() vec.Vec2 { return e.center }

// MoveSession translates the selection. Append takes the increment since
// the previous sample.
type MoveSession struct {
	selectionEdit
	du, dv float64
}

func NewMoveSession(scene *Scene) *MoveSession {
	return &MoveSession{selectionEdit: selectionEdit{scene: scene}}
}

func (s *MoveSession) Start() error {
	if err := s.start(); err != nil {
		return err
	}
	s.du, s.dv = 0, 0
	return nil
}

func (s *MoveSession) Append(du, dv float64) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	for _, e := range s.entities {
		e.MoveDelta(du, dv)
	}
	s.du += du
	s.dv += dv
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

// Total returns the accumulated translation.
func (s *MoveSession) Total() (float64, float64) { return s.du, s.dv }

func (s *MoveSession) Finish(stack *undo.Stack) (State, error) {
	identity := math.Abs(s.du) < Epsilon && math.Abs(s.dv) < Epsilon
	return s.finish(stack, identity, "move", "Move entities")
}

func (s *MoveSession) Abort() State { return s.abort("move") }

// ScaleSession scales the selection around its center. Append takes the
// factor relative to the previous sample.
type ScaleSession struct {
	selectionEdit
	sx, sy float64
}

func NewScaleSession(scene *Scene) *ScaleSession {
	return &ScaleSession{selectionEdit: selectionEdit{scene: scene}}
}

func (s *ScaleSession) Start() error {
	if err := s.start(); err != nil {
		return err
	}
	s.sx, s.sy = 1, 1
	return nil
}

// Append applies the factors (sx, sy). Degenerate factors that would
// collapse the selection are ignored.
func (s *ScaleSession) Append(sx, sy float64) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	if math.Abs(sx) < Epsilon || math.Abs(sy) < Epsilon {
		return nil
	}
	for _, e := range s.entities {
		e.Scale(sx, sy, s.center)
	}
	s.sx *= sx
	s.sy *= sy
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

// Total returns the accumulated scale factors.
func (s *ScaleSession) Total() (float64, float64) { return s.sx, s.sy }

func (s *ScaleSession) Finish(stack *undo.Stack) (State, error) {
	identity := math.Abs(s.sx-1) < Epsilon && math.Abs(s.sy-1) < Epsilon
	return s.finish(stack, identity, "scale", "Scale entities")
}

func (s *ScaleSession) Abort() State { return s.abort("scale") }

// RotateSession rotates the selection around its center. Append takes the
// angle in radians relative to the previous sample.
type RotateSession struct {
	selectionEdit
	theta float64
}

func NewRotateSession(scene *Scene) *RotateSession {
	return &RotateSession{selectionEdit: selectionEdit{scene: scene}}
}

func (s *RotateSession) Start() error {
	if err := s.start(); err != nil {
		return err
	}
	s.theta = 0
	return nil
}

func (s *RotateSession) Append(theta float64) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	for _, e := range s.entities {
		e.Rotate(theta, s.center)
	}
	s.theta += theta
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

// Total returns the accumulated angle.
func (s *RotateSession) Total() float64 { return s.theta }

func (s *RotateSession) Finish(stack *undo.Stack) (State, error) {
	identity := math.Abs(math.Remainder(s.theta, 2*math.Pi)) < Epsilon
	return s.finish(stack, identity, "rotate", "Rotate entities")
}

func (s *RotateSession) Abort() State { return s.abort("rotate") }

// EraseSession removes runs of points from one stroke. Surviving runs
// become separate strokes; runs too short to be kept are dropped.
type EraseSession struct {
	machine
	scene  *Scene
	canvas *Canvas
	stroke *Stroke
	marked []bool
}

func NewEraseSession(scene *Scene) *EraseSession {
	return &EraseSession{scene: scene}
}

func (s *EraseSession) Start(stroke *Stroke) error {
	if err := s.canStart(); err != nil {
		return err
	}
	if stroke == nil {
		return ErrNoStroke
	}
	c := s.scene.OwnerOf(stroke)
	if c == nil {
		return ErrNotOwned
	}
	s.canvas = c
	s.stroke = stroke
	s.marked = make([]bool, stroke.NumPoints())
	s.state = StateActive
	return nil
}

// Append marks the points in [first, last] as erased. The range is
// clamped to the stroke.
func (s *EraseSession) Append(first, last int) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	if first > last {
		first, last = last, first
	}
	first = max(first, 0)
	last = min(last, len(s.marked)-1)
	for i := first; i <= last; i++ {
		s.marked[i] = true
	}
	return nil
}

// AppendHit marks every point within radius of the local point p.
func (s *EraseSession) AppendHit(p vec.Vec2, radius float64) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	for i, q := range s.stroke.Points() {
		if q.Sub(p).Length() <= radius {
			s.marked[i] = true
		}
	}
	return nil
}

// Marked returns the number of points marked so far.
func (s *EraseSession) Marked() int {
	n := 0
	for _, m := range s.marked {
		if m {
			n++
		}
	}
	return n
}

func (s *EraseSession) Finish(stack *undo.Stack) (State, error) {
	if err := s.mustBeActive(); err != nil {
		return StateIdle, err
	}
	defer s.reset()
	if !s.scene.owns(s.canvas) || !s.canvas.Contains(s.stroke) || s.Marked() == 0 {
		return s.end(StateAborted, "erase"), nil
	}

	var pieces []*Stroke
	first := -1
	for i := 0; i <= len(s.marked); i++ {
		if i < len(s.marked) && !s.marked[i] {
			if first < 0 {
				first = i
			}
			continue
		}
		if first >= 0 {
			if piece := s.stroke.Slice(first, i-1); piece.IsLengthy() {
				pieces = append(pieces, piece)
			}
			first = -1
		}
	}

	index := s.canvas.StrokeIndex(s.stroke)
	if len(pieces) == 0 {
		commit(stack, &deleteEntityCmd{entityMembership{scene: s.scene, canvas: s.canvas, entity: s.stroke, index: index}})
	} else {
		commit(stack, &eraseCmd{scene: s.scene, canvas: s.canvas, original: s.stroke, index: index, pieces: pieces})
	}
	return s.end(StateCommitted, "erase"), nil
}

// Abort forgets the marks; the stroke was never changed.
func (s *EraseSession) Abort() State {
	if !s.Active() {
		return StateIdle
	}
	s.reset()
	return s.end(StateAborted, "erase")
}

func (s *EraseSession) reset() {
	s.canvas = nil
	s.stroke = nil
	s.marked = nil
}

// canvasEdit is the common part of canvas offset and rotate.
type canvasEdit struct {
	machine
	scene  *Scene
	canvas *Canvas
	before Frame
}

func (e *canvasEdit) start() error {
	if err := e.canStart(); err != nil {
		return err
	}
	c := e.scene.Current()
	if c == nil {
		return ErrNoCurrentCanvas
	}
	e.canvas = c
	e.before = c.frame
	e.scene.setEditing(c, true)
	e.state = StateActive
	return nil
}

func (e *canvasEdit) finish(stack *undo.Stack, family, text string) (State, error) {
	if err := e.mustBeActive(); err != nil {
		return StateIdle, err
	}
	defer e.reset()
	after := e.canvas.frame
	if !e.scene.owns(e.canvas) || sameFrame(e.before, after) {
		e.canvas.setFrame(e.before)
		e.scene.notify(Notification{Type: UpdateRequested})
		return e.end(StateAborted, family), nil
	}
	record(stack, &canvasFrameCmd{scene: e.scene, text: text, canvas: e.canvas, before: e.before, after: after})
	return e.end(StateCommitted, family), nil
}

func (e *canvasEdit) abort(family string) State {
	if !e.Active() {
		return StateIdle
	}
	e.canvas.setFrame(e.before)
	e.scene.notify(Notification{Type: UpdateRequested})
	e.reset()
	return e.end(StateAborted, family)
}

func (e *canvasEdit) reset() {
	e.scene.setEditing(e.canvas, false)
	e.canvas = nil
}

func sameFrame(a, b Frame) bool {
	return a.Translation.Sub(b.Translation).IsZero(Epsilon) &&
		b.Rotation.Mul(a.Rotation.Conjugate()).IsIdentity(Epsilon)
}

// CanvasOffsetSession translates the current canvas. Append takes the
// world-space increment since the previous sample.
type CanvasOffsetSession struct {
	canvasEdit
}

func NewCanvasOffsetSession(scene *Scene) *CanvasOffsetSession {
	return &CanvasOffsetSession{canvasEdit{scene: scene}}
}

func (s *CanvasOffsetSession) Start() error { return s.start() }

func (s *CanvasOffsetSession) Append(t Vec3) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	s.canvas.setFrame(s.canvas.frame.Translate(t))
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

func (s *CanvasOffsetSession) Finish(stack *undo.Stack) (State, error) {
	return s.finish(stack, "canvas-offset", "Offset "+s.canvasName())
}

func (s *CanvasOffsetSession) Abort() State { return s.abort("canvas-offset") }

// CanvasRotateSession rotates the current canvas about a world point.
// Append takes the rotation increment since the previous sample.
type CanvasRotateSession struct {
	canvasEdit
}

func NewCanvasRotateSession(scene *Scene) *CanvasRotateSession {
	return &CanvasRotateSession{canvasEdit{scene: scene}}
}

func (s *CanvasRotateSession) Start() error { return s.start() }

func (s *CanvasRotateSession) Append(r Quat, center Vec3) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	s.canvas.setFrame(s.canvas.frame.RotateAbout(r.Normalize(), center))
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

func (s *CanvasRotateSession) Finish(stack *undo.Stack) (State, error) {
	return s.finish(stack, "canvas-rotate", "Rotate "+s.canvasName())
}

func (s *CanvasRotateSession) Abort() State { return s.abort("canvas-rotate") }

func (e *canvasEdit) canvasName() string {
	if e.canvas == nil {
		return "canvas"
	}
	return e.canvas.name
}

// CanvasCloneSession copies the current canvas and drags the copy away
// from it. The copy is live in the scene while the gesture runs.
type CanvasCloneSession struct {
	machine
	scene  *Scene
	source uint
	clone  *Canvas
	offset Vec3
}

func NewCanvasCloneSession(scene *Scene) *CanvasCloneSession {
	return &CanvasCloneSession{scene: scene}
}

// Clone returns the copy being placed, or nil when idle.
func (s *CanvasCloneSession) Clone() *Canvas { return s.clone }

func (s *CanvasCloneSession) Start() error {
	if err := s.canStart(); err != nil {
		return err
	}
	src := s.scene.Current()
	if src == nil {
		return ErrNoCurrentCanvas
	}
	s.source = src.id
	s.clone = s.scene.duplicateCanvas(src)
	s.offset = Vec3{}
	s.scene.insertCanvas(s.clone, -1)
	s.scene.setCloneSource(src)
	s.state = StateActive
	return nil
}

func (s *CanvasCloneSession) Append(t Vec3) error {
	if err := s.mustBeActive(); err != nil {
		return err
	}
	s.clone.setFrame(s.clone.frame.Translate(t))
	s.offset = s.offset.Add(t)
	s.scene.notify(Notification{Type: UpdateRequested})
	return nil
}

// Finish keeps the copy if the source still exists and the copy was moved.
func (s *CanvasCloneSession) Finish(stack *undo.Stack) (State, error) {
	if err := s.mustBeActive(); err != nil {
		return StateIdle, err
	}
	defer s.reset()
	s.scene.setCloneSource(nil)
	if s.scene.Canvas(s.source) == nil || s.offset.IsZero(Epsilon) || !s.scene.owns(s.clone) {
		s.scene.removeCanvas(s.clone)
		return s.end(StateAborted, "canvas-clone"), nil
	}
	index := s.scene.CanvasIndex(s.clone)
	record(stack, &addCanvasCmd{membership: canvasMembership{scene: s.scene, canvas: s.clone, index: index}})
	return s.end(StateCommitted, "canvas-clone"), nil
}

func (s *CanvasCloneSession) Abort() State {
	if !s.Active() {
		return StateIdle
	}
	s.scene.setCloneSource(nil)
	s.scene.removeCanvas(s.clone)
	s.reset()
	return s.end(StateAborted, "canvas-clone")
}

func (s *CanvasCloneSession) reset() {
	s.clone = nil
	s.offset = Vec3{}
}
