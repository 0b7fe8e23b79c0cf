package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/undo"
)

// PointerEvent is the phase of an interactive gesture.
type PointerEvent int

const (
	PointerStart PointerEvent = iota
	PointerAppend
	PointerFinish
	PointerAbort
)

var pointerEventNames = [...]string{"start", "append", "finish", "abort"}

func (e PointerEvent) String() string {
	if e < 0 || int(e) >= len(pointerEventNames) {
		return "unknown"
	}
	return pointerEventNames[e]
}

// ParsePointerEvent maps "start", "append", "finish" and "abort" to events.
func ParsePointerEvent(s string) (PointerEvent, error) {
	for i, n := range pointerEventNames {
		if n == s {
			return PointerEvent(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownEvent)
}

// DefaultUndoLimit bounds the command history of a new engine.
const DefaultUndoLimit = 200

// Engine owns a scene, its command history and one session per gesture
// family. Pointer methods take absolute samples and feed the sessions the
// increments they expect. Only one gesture runs at a time.
type Engine struct {
	scene *Scene
	stack *undo.Stack

	sketch       *SketchSession
	move         *MoveSession
	scale        *ScaleSession
	rotate       *RotateSession
	erase        *EraseSession
	canvasOffset *CanvasOffsetSession
	canvasRotate *CanvasRotateSession
	canvasClone  *CanvasCloneSession

	// active is the running gesture, nil when idle.
	active interface{ Abort() State }

	// Previous samples of the running gesture.
	lastLocal vec.Vec2
	lastWorld Vec3
	lastRot   Quat
}

// NewEngine creates an engine with an empty scene.
func NewEngine() *Engine {
	e := &Engine{stack: undo.NewStack()}
	e.stack.Limit = DefaultUndoLimit
	e.setScene(NewScene())
	return e
}

func (e *Engine) setScene(s *Scene) {
	e.scene = s
	e.sketch = NewSketchSession(s)
	e.move = NewMoveSession(s)
	e.scale = NewScaleSession(s)
	e.rotate = NewRotateSession(s)
	e.erase = NewEraseSession(s)
	e.canvasOffset = NewCanvasOffsetSession(s)
	e.canvasRotate = NewCanvasRotateSession(s)
	e.canvasClone = NewCanvasCloneSession(s)
	e.active = nil
}

func (e *Engine) Scene() *Scene          { return e.scene }
func (e *Engine) Stack() *undo.Stack     { return e.stack }
func (e *Engine) Busy() bool             { return e.active != nil }
func (e *Engine) CanUndo() bool          { return e.stack.CanUndo() }
func (e *Engine) CanRedo() bool          { return e.stack.CanRedo() }
func (e *Engine) IsClean() bool          { return e.stack.IsClean() }
func (e *Engine) SetClean()              { e.stack.SetClean() }
func (e *Engine) UndoText() string       { return e.stack.UndoText() }
func (e *Engine) RedoText() string       { return e.stack.RedoText() }
func (e *Engine) Sketch() *SketchSession { return e.sketch }

// --- Document ---

// LoadDocument replaces the scene with the one encoded in jsonData and
// clears the history.
func (e *Engine) LoadDocument(jsonData string) error {
	var doc document.SceneDocument
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("decode scene document: %w", err)
	}
	return e.LoadRecord(&doc)
}

// LoadRecord replaces the scene with doc and clears the history.
func (e *Engine) LoadRecord(doc *document.SceneDocument) error {
	s, err := BuildScene(doc)
	if err != nil {
		return err
	}
	e.AbortGesture()
	s.notifier = e.scene.notifier
	e.setScene(s)
	e.stack.Clear()
	s.notify(Notification{Type: UpdateRequested})
	return nil
}

// LoadSampleDocument loads the built-in starting scene.
func (e *Engine) LoadSampleDocument() {
	if err := e.LoadRecord(document.NewSampleDocument()); err != nil {
		slog.Error("sample document rejected", "error", err)
	}
}

// Record returns the scene as a document record.
func (e *Engine) Record() *document.SceneDocument { return ToDocument(e.scene) }

// Document returns the scene as JSON.
func (e *Engine) Document() string {
	data, err := json.Marshal(e.Record())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Render compiles the scene and returns draw commands as JSON.
func (e *Engine) Render() string {
	result, _ := DrawCommandsToJSON(CompileDrawCommands(e.scene))
	return result
}

// --- History ---

// Undo reverts the last command. It is refused while a gesture runs.
func (e *Engine) Undo() bool {
	if e.Busy() {
		return false
	}
	return e.stack.Undo()
}

// Redo reapplies the last undone command. It is refused while a gesture
// runs.
func (e *Engine) Redo() bool {
	if e.Busy() {
		return false
	}
	return e.stack.Redo()
}

// AbortGesture rolls back the running gesture, if any.
func (e *Engine) AbortGesture() {
	if e.active != nil {
		e.active.Abort()
		e.active = nil
	}
}

// --- Gestures ---

// begin marks g as the running gesture unless another one is running.
func (e *Engine) begin(g interface{ Abort() State }) error {
	if e.active != nil && e.active != g {
		return ErrSessionActive
	}
	return nil
}

func (e *Engine) started(g interface{ Abort() State }, err error) error {
	if err == nil {
		e.active = g
	}
	return err
}

func (e *Engine) finished(state State, err error) (State, error) {
	e.active = nil
	return state, err
}

func (e *Engine) aborted(g interface{ Abort() State }) (State, error) {
	e.active = nil
	return g.Abort(), nil
}

// AddStroke draws on the current canvas. (u, v) are local coordinates.
// Finish adds the final sample before committing.
func (e *Engine) AddStroke(u, v float64, ev PointerEvent) (State, error) {
	s := e.sketch
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	switch ev {
	case PointerStart:
		if err := e.started(s, s.Start()); err != nil {
			return StateIdle, err
		}
		return s.State(), s.Append(u, v)
	case PointerAppend:
		return s.State(), s.Append(u, v)
	case PointerFinish:
		if err := s.Append(u, v); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

// EditStrokesMove drags the selection of the current canvas. (u, v) is the
// absolute local pointer position.
func (e *Engine) EditStrokesMove(u, v float64, ev PointerEvent) (State, error) {
	s := e.move
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	p := vec.Vec2{X: u, Y: v}
	switch ev {
	case PointerStart:
		e.lastLocal = p
		return s.State(), e.started(s, s.Start())
	case PointerAppend:
		return s.State(), e.moveTo(p)
	case PointerFinish:
		if err := e.moveTo(p); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) moveTo(p vec.Vec2) error {
	d := p.Sub(e.lastLocal)
	if err := e.move.Append(d.X, d.Y); err != nil {
		return err
	}
	e.lastLocal = p
	return nil
}

// EditStrokesScale scales the selection uniformly by the ratio of the
// pointer's distances from the selection center.
func (e *Engine) EditStrokesScale(u, v float64, ev PointerEvent) (State, error) {
	s := e.scale
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	p := vec.Vec2{X: u, Y: v}
	switch ev {
	case PointerStart:
		e.lastLocal = p
		return s.State(), e.started(s, s.Start())
	case PointerAppend:
		return s.State(), e.scaleTo(p)
	case PointerFinish:
		if err := e.scaleTo(p); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) scaleTo(p vec.Vec2) error {
	if err := e.scale.mustBeActive(); err != nil {
		return err
	}
	c := e.scale.Center()
	prev := e.lastLocal.Sub(c).Length()
	if prev < Epsilon {
		// The pointer started on the pivot; wait for it to leave.
		e.lastLocal = p
		return nil
	}
	k := p.Sub(c).Length() / prev
	if k < Epsilon {
		return nil
	}
	e.lastLocal = p
	return e.scale.Append(k, k)
}

// EditStrokesRotate rotates the selection by the change of the pointer's
// polar angle around the selection center.
func (e *Engine) EditStrokesRotate(u, v float64, ev PointerEvent) (State, error) {
	s := e.rotate
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	p := vec.Vec2{X: u, Y: v}
	switch ev {
	case PointerStart:
		e.lastLocal = p
		return s.State(), e.started(s, s.Start())
	case PointerAppend:
		return s.State(), e.rotateTo(p)
	case PointerFinish:
		if err := e.rotateTo(p); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) rotateTo(p vec.Vec2) error {
	if err := e.rotate.mustBeActive(); err != nil {
		return err
	}
	c := e.rotate.Center()
	a, b := e.lastLocal.Sub(c), p.Sub(c)
	if a.Length() < Epsilon || b.Length() < Epsilon {
		e.lastLocal = p
		return nil
	}
	theta := math.Atan2(b.Y, b.X) - math.Atan2(a.Y, a.X)
	e.lastLocal = p
	return e.rotate.Append(theta)
}

// EraseStroke erases the points [first, last] of stroke. Every event
// names the stroke; only the one given on start is edited.
func (e *Engine) EraseStroke(stroke *Stroke, first, last int, ev PointerEvent) (State, error) {
	s := e.erase
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	switch ev {
	case PointerStart:
		if err := e.started(s, s.Start(stroke)); err != nil {
			return StateIdle, err
		}
		return s.State(), s.Append(first, last)
	case PointerAppend:
		return s.State(), s.Append(first, last)
	case PointerFinish:
		if err := s.Append(first, last); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

// EraseAt erases the points within radius of the local pointer position.
// The stroke is picked on the current canvas at start.
func (e *Engine) EraseAt(u, v, radius float64, ev PointerEvent) (State, error) {
	s := e.erase
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	p := vec.Vec2{X: u, Y: v}
	switch ev {
	case PointerStart:
		c := e.scene.Current()
		if c == nil {
			return StateIdle, ErrNoCurrentCanvas
		}
		if err := e.started(s, s.Start(c.StrokeAt(p, radius))); err != nil {
			return StateIdle, err
		}
		return s.State(), s.AppendHit(p, radius)
	case PointerAppend:
		return s.State(), s.AppendHit(p, radius)
	case PointerFinish:
		if err := s.AppendHit(p, radius); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

// EditCanvasOffset drags the current canvas. p is the absolute world
// position of the pointer.
func (e *Engine) EditCanvasOffset(p Vec3, ev PointerEvent) (State, error) {
	s := e.canvasOffset
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	switch ev {
	case PointerStart:
		e.lastWorld = p
		return s.State(), e.started(s, s.Start())
	case PointerAppend:
		return s.State(), e.offsetTo(p)
	case PointerFinish:
		if err := e.offsetTo(p); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) offsetTo(p Vec3) error {
	if err := e.canvasOffset.Append(p.Sub(e.lastWorld)); err != nil {
		return err
	}
	e.lastWorld = p
	return nil
}

// EditCanvasRotate rotates the current canvas about center. r is the
// absolute rotation since the gesture started.
func (e *Engine) EditCanvasRotate(r Quat, center Vec3, ev PointerEvent) (State, error) {
	s := e.canvasRotate
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	switch ev {
	case PointerStart:
		e.lastRot = QuatIdentity()
		if err := e.started(s, s.Start()); err != nil {
			return StateIdle, err
		}
		return s.State(), e.rotateCanvasTo(r, center)
	case PointerAppend:
		return s.State(), e.rotateCanvasTo(r, center)
	case PointerFinish:
		if err := e.rotateCanvasTo(r, center); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) rotateCanvasTo(r Quat, center Vec3) error {
	r = r.Normalize()
	if err := e.canvasRotate.Append(r.Mul(e.lastRot.Conjugate()), center); err != nil {
		return err
	}
	e.lastRot = r
	return nil
}

// EditCanvasClone copies the current canvas and drags the copy. p is the
// absolute world position of the pointer.
func (e *Engine) EditCanvasClone(p Vec3, ev PointerEvent) (State, error) {
	s := e.canvasClone
	if err := e.begin(s); err != nil {
		return StateIdle, err
	}
	switch ev {
	case PointerStart:
		e.lastWorld = p
		return s.State(), e.started(s, s.Start())
	case PointerAppend:
		return s.State(), e.cloneTo(p)
	case PointerFinish:
		if err := e.cloneTo(p); err != nil {
			return StateIdle, err
		}
		return e.finished(s.Finish(e.stack))
	case PointerAbort:
		return e.aborted(s)
	}
	return StateIdle, ErrUnknownEvent
}

func (e *Engine) cloneTo(p Vec3) error {
	if err := e.canvasClone.Append(p.Sub(e.lastWorld)); err != nil {
		return err
	}
	e.lastWorld = p
	return nil
}
