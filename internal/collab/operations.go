package collab

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
)

var (
	ErrBusy             = errors.New("another gesture is in progress")
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
)

// defaultEraseRadius is used when a stroke.erase operation names none.
const defaultEraseRadius = 0.05

// SceneState holds the authoritative scene of a room. All edits run
// through Apply, one at a time.
type SceneState struct {
	mu        sync.Mutex
	eng       *engine.Engine
	serverSeq int64
	savedSeq  int64

	// owner is the client whose gesture is running.
	owner string

	// events collects the notifications of the operation being applied.
	events []engine.Notification
}

// Result describes an applied operation.
type Result struct {
	ServerSeq int64
	State     string
	History   History
	Events    []engine.Notification
}

// NewSceneState loads doc into a fresh engine. A nil doc starts from the
// sample scene.
func NewSceneState(doc *document.SceneDocument) (*SceneState, error) {
	eng := engine.NewEngine()
	if doc == nil {
		doc = document.NewSampleDocument()
	}
	if err := eng.LoadRecord(doc); err != nil {
		return nil, err
	}
	eng.SetClean()

	ss := &SceneState{eng: eng}
	eng.Scene().Subscribe(ss.collect)
	return ss, nil
}

func (ss *SceneState) collect(n engine.Notification) {
	if n.Type == engine.UpdateRequested && len(ss.events) > 0 &&
		ss.events[len(ss.events)-1].Type == engine.UpdateRequested {
		return
	}
	ss.events = append(ss.events, n)
}

// ServerSeq returns the number of operations applied so far.
func (ss *SceneState) ServerSeq() int64 {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.serverSeq
}

// Snapshot returns the current scene document and the sequence it
// reflects.
func (ss *SceneState) Snapshot() (*document.SceneDocument, int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.eng.Record(), ss.serverSeq
}

// Render returns the draw commands of the current scene as JSON.
func (ss *SceneState) Render() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.eng.Render()
}

// HasCanvas reports whether the scene holds a canvas with the given id.
func (ss *SceneState) HasCanvas(id uint) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.eng.Scene().Canvas(id) != nil
}

// Pick is the entity under a point of the current canvas.
type Pick struct {
	Entity string `json:"entity,omitempty"`
	Index  int    `json:"index"`
}

// Pick finds the topmost stroke within radius of (u, v) on the current
// canvas, or else the topmost photo containing it. Index is -1 when
// nothing is hit.
func (ss *SceneState) Pick(u, v, radius float64) Pick {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	c := ss.eng.Scene().Current()
	if c == nil {
		return Pick{Index: -1}
	}
	p := vec.Vec2{X: u, Y: v}
	if st := c.StrokeAt(p, radius); st != nil {
		return Pick{Entity: EntityStroke, Index: c.StrokeIndex(st)}
	}
	if ph := c.PhotoAt(p); ph != nil {
		return Pick{Entity: EntityPhoto, Index: c.PhotoIndex(ph)}
	}
	return Pick{Index: -1}
}

// History returns the current undo state.
func (ss *SceneState) History() History {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.history()
}

// Dirty reports whether operations were applied since the last MarkSaved.
func (ss *SceneState) Dirty() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.serverSeq != ss.savedSeq
}

// MarkSaved records that the snapshot taken at seq was persisted.
func (ss *SceneState) MarkSaved(seq int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if seq > ss.savedSeq {
		ss.savedSeq = seq
	}
	if ss.savedSeq == ss.serverSeq {
		ss.eng.SetClean()
	}
}

// Release aborts the gesture of clientID, if it runs one, and reports the
// abort as an applied operation.
func (ss *SceneState) Release(clientID string) (*Result, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.owner != clientID || !ss.eng.Busy() {
		return nil, false
	}
	ss.events = nil
	ss.eng.AbortGesture()
	ss.owner = ""
	ss.serverSeq++
	res := &Result{
		ServerSeq: ss.serverSeq,
		State:     engine.StateAborted.String(),
		History:   ss.history(),
		Events:    ss.events,
	}
	ss.events = nil
	return res, true
}

// Apply runs op on behalf of clientID.
func (ss *SceneState) Apply(clientID string, op Operation) (*Result, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.events = nil
	state, err := ss.apply(clientID, op)
	events := ss.events
	ss.events = nil
	if err != nil {
		return nil, err
	}

	ss.serverSeq++
	return &Result{
		ServerSeq: ss.serverSeq,
		State:     state,
		History:   ss.history(),
		Events:    events,
	}, nil
}

func (ss *SceneState) history() History {
	return History{
		CanUndo:  ss.eng.CanUndo(),
		CanRedo:  ss.eng.CanRedo(),
		UndoText: ss.eng.UndoText(),
		RedoText: ss.eng.RedoText(),
	}
}

func (ss *SceneState) apply(clientID string, op Operation) (string, error) {
	e := ss.eng
	switch op.Type {
	case OpStrokeAdd:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			return e.AddStroke(op.U, op.V, ev)
		})
	case OpStrokeErase:
		radius := op.Radius
		if radius <= 0 {
			radius = defaultEraseRadius
		}
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			return e.EraseAt(op.U, op.V, radius, ev)
		})
	case OpSelectionMove:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			return e.EditStrokesMove(op.U, op.V, ev)
		})
	case OpSelectionScale:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			return e.EditStrokesScale(op.U, op.V, ev)
		})
	case OpSelectionRotate:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			return e.EditStrokesRotate(op.U, op.V, ev)
		})
	case OpCanvasOffset:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			p, err := requireVec3(op.Point, "point", ev)
			if err != nil {
				return engine.StateIdle, err
			}
			return e.EditCanvasOffset(p, ev)
		})
	case OpCanvasRotate:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			center, err := requireVec3(op.Center, "center", ev)
			if err != nil {
				return engine.StateIdle, err
			}
			r := engine.QuatIdentity()
			if op.Rotation != nil {
				r = quat(*op.Rotation)
			} else if ev != engine.PointerAbort {
				return engine.StateIdle, fmt.Errorf("%w: rotation required", ErrInvalidOperation)
			}
			return e.EditCanvasRotate(r, center, ev)
		})
	case OpCanvasClone:
		return ss.gesture(clientID, op, func(ev engine.PointerEvent) (engine.State, error) {
			p, err := requireVec3(op.Point, "point", ev)
			if err != nil {
				return engine.StateIdle, err
			}
			return e.EditCanvasClone(p, ev)
		})
	case OpGestureAbort:
		if !e.Busy() {
			return "", nil
		}
		if ss.owner != clientID {
			return "", ErrBusy
		}
		e.AbortGesture()
		ss.owner = ""
		return engine.StateAborted.String(), nil
	case OpHistoryUndo, OpHistoryRedo:
		if e.Busy() {
			return "", ErrBusy
		}
		if op.Type == OpHistoryUndo {
			if !e.Undo() {
				return "", ErrNothingToUndo
			}
			return "", nil
		}
		if !e.Redo() {
			return "", ErrNothingToRedo
		}
		return "", nil
	}

	if _, ok := editOps[op.Type]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
	if e.Busy() {
		return "", ErrBusy
	}
	return "", editOps[op.Type](e.Scene(), e, op)
}

// gesture runs one event of a pointer gesture. While a gesture runs, only
// the client that started it may send further events.
func (ss *SceneState) gesture(clientID string, op Operation, run func(engine.PointerEvent) (engine.State, error)) (string, error) {
	ev, err := engine.ParsePointerEvent(op.Event)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if ss.eng.Busy() && ss.owner != clientID {
		return "", ErrBusy
	}
	state, err := run(ev)
	if ss.eng.Busy() {
		ss.owner = clientID
	} else {
		ss.owner = ""
	}
	if err != nil {
		return "", err
	}
	return state.String(), nil
}

type editFunc func(s *engine.Scene, e *engine.Engine, op Operation) error

// editOps are the single step edits. They are refused while a gesture
// runs.
var editOps = map[string]editFunc{
	OpCanvasAdd:        addCanvas,
	OpCanvasDelete:     deleteCanvas,
	OpCanvasCurrent:    setCurrent,
	OpCanvasTarget:     setTarget,
	OpCanvasVisibility: setVisibility,
	OpCanvasOthers:     setOthersVisibility,
	OpEntitySelect:     selectEntity,
	OpEntityDelete:     deleteEntity,
	OpSelectionAll:     selectAll,
	OpSelectionClear:   clearSelection,
	OpSelectionPush:    pushSelection,
	OpPhotoAdd:         addPhoto,
	OpBookmarkAdd:      addBookmark,
	OpBookmarkUpdate:   updateBookmark,
	OpBookmarkDelete:   deleteBookmark,
}

func addCanvas(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Normal == nil {
		frame := engine.IdentityFrame()
		if op.Center != nil {
			frame.Translation = vec3(*op.Center)
		}
		s.AddCanvas(e.Stack(), frame, "")
		return nil
	}
	normal := vec3(*op.Normal)
	if normal.IsZero(engine.Epsilon) {
		return fmt.Errorf("%w: zero normal", ErrInvalidOperation)
	}
	var center engine.Vec3
	if op.Center != nil {
		center = vec3(*op.Center)
	}
	s.AddCanvasNormal(e.Stack(), normal, center)
	return nil
}

func deleteCanvas(s *engine.Scene, e *engine.Engine, op Operation) error {
	c, err := canvasOf(s, op)
	if err != nil {
		return err
	}
	return s.DeleteCanvas(e.Stack(), c)
}

func setCurrent(s *engine.Scene, _ *engine.Engine, op Operation) error {
	c, err := canvasOf(s, op)
	if err != nil {
		return err
	}
	if !s.SetCanvasCurrent(c) {
		return engine.ErrNotOwned
	}
	return nil
}

// setTarget sets the push target; a missing canvas id clears it.
func setTarget(s *engine.Scene, _ *engine.Engine, op Operation) error {
	if op.CanvasID == nil {
		s.SetCanvasTarget(nil)
		return nil
	}
	c, err := canvasOf(s, op)
	if err != nil {
		return err
	}
	s.SetCanvasTarget(c)
	return nil
}

func setVisibility(s *engine.Scene, _ *engine.Engine, op Operation) error {
	c, err := canvasOf(s, op)
	if err != nil {
		return err
	}
	if op.Visible == nil {
		return fmt.Errorf("%w: visible required", ErrInvalidOperation)
	}
	s.SetCanvasVisibility(c, *op.Visible)
	return nil
}

func setOthersVisibility(s *engine.Scene, _ *engine.Engine, op Operation) error {
	if op.Visible == nil {
		return fmt.Errorf("%w: visible required", ErrInvalidOperation)
	}
	s.SetCanvasesButCurrent(*op.Visible)
	return nil
}

// selectEntity changes the selection of the canvas owning the entity.
// Select defaults to true.
func selectEntity(s *engine.Scene, _ *engine.Engine, op Operation) error {
	c, ent, err := entityOf(s, op)
	if err != nil {
		return err
	}
	if op.Select != nil && !*op.Select {
		c.Deselect(ent)
	} else {
		c.Select(ent)
	}
	s.RequestUpdate()
	return nil
}

func deleteEntity(s *engine.Scene, e *engine.Engine, op Operation) error {
	_, ent, err := entityOf(s, op)
	if err != nil {
		return err
	}
	switch ent := ent.(type) {
	case *engine.Stroke:
		return s.DeleteStroke(e.Stack(), ent)
	case *engine.Photo:
		return s.DeletePhoto(e.Stack(), ent)
	}
	return fmt.Errorf("%w: unknown entity", ErrInvalidOperation)
}

func selectAll(s *engine.Scene, _ *engine.Engine, op Operation) error {
	c, err := canvasOrCurrent(s, op)
	if err != nil {
		return err
	}
	c.SelectAll()
	s.RequestUpdate()
	return nil
}

func clearSelection(s *engine.Scene, _ *engine.Engine, op Operation) error {
	c, err := canvasOrCurrent(s, op)
	if err != nil {
		return err
	}
	c.ClearSelection()
	s.RequestUpdate()
	return nil
}

func pushSelection(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Camera == nil {
		return fmt.Errorf("%w: camera required", ErrInvalidOperation)
	}
	return s.PushSelection(e.Stack(), vec3(op.Camera.Eye))
}

func addPhoto(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidOperation)
	}
	_, err := s.AddPhoto(e.Stack(), op.Path, op.Width, op.Height)
	return err
}

func addBookmark(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Camera == nil {
		return fmt.Errorf("%w: camera required", ErrInvalidOperation)
	}
	s.AddBookmark(e.Stack(), pose(*op.Camera))
	return nil
}

func updateBookmark(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Camera == nil || op.Index == nil {
		return fmt.Errorf("%w: index and camera required", ErrInvalidOperation)
	}
	return s.UpdateBookmark(e.Stack(), *op.Index, pose(*op.Camera))
}

func deleteBookmark(s *engine.Scene, e *engine.Engine, op Operation) error {
	if op.Index == nil {
		return fmt.Errorf("%w: index required", ErrInvalidOperation)
	}
	return s.DeleteBookmark(e.Stack(), *op.Index)
}

// --- Lookups ---

func canvasOf(s *engine.Scene, op Operation) (*engine.Canvas, error) {
	if op.CanvasID == nil {
		return nil, fmt.Errorf("%w: canvasId required", ErrInvalidOperation)
	}
	c := s.Canvas(*op.CanvasID)
	if c == nil {
		return nil, fmt.Errorf("canvas %d: %w", *op.CanvasID, engine.ErrNotOwned)
	}
	return c, nil
}

func canvasOrCurrent(s *engine.Scene, op Operation) (*engine.Canvas, error) {
	if op.CanvasID != nil {
		return canvasOf(s, op)
	}
	c := s.Current()
	if c == nil {
		return nil, engine.ErrNoCurrentCanvas
	}
	return c, nil
}

// entityOf resolves Entity and Index to a stroke or photo row of the
// canvas named by CanvasID, or of the current canvas.
func entityOf(s *engine.Scene, op Operation) (*engine.Canvas, engine.Entity, error) {
	c, err := canvasOrCurrent(s, op)
	if err != nil {
		return nil, nil, err
	}
	if op.Index == nil {
		return nil, nil, fmt.Errorf("%w: index required", ErrInvalidOperation)
	}
	i := *op.Index
	switch op.Entity {
	case EntityStroke:
		strokes := c.Strokes()
		if i < 0 || i >= len(strokes) {
			return nil, nil, fmt.Errorf("stroke %d: %w", i, engine.ErrNotOwned)
		}
		return c, strokes[i], nil
	case EntityPhoto:
		photos := c.Photos()
		if i < 0 || i >= len(photos) {
			return nil, nil, fmt.Errorf("photo %d: %w", i, engine.ErrNotOwned)
		}
		return c, photos[i], nil
	}
	return nil, nil, fmt.Errorf("%w: entity %q", ErrInvalidOperation, op.Entity)
}

// --- Conversions ---

func vec3(v document.Vec3) engine.Vec3 { return engine.V3(v[0], v[1], v[2]) }

func quat(q document.Quat) engine.Quat {
	return engine.Quat{X: q[0], Y: q[1], Z: q[2], W: q[3]}
}

func pose(c CameraPose) engine.CameraPose {
	return engine.CameraPose{Eye: vec3(c.Eye), Center: vec3(c.Center), Up: vec3(c.Up)}
}

// requireVec3 converts v, which may only be missing on abort.
func requireVec3(v *document.Vec3, name string, ev engine.PointerEvent) (engine.Vec3, error) {
	if v != nil {
		return vec3(*v), nil
	}
	if ev == engine.PointerAbort {
		return engine.Vec3{}, nil
	}
	return engine.Vec3{}, fmt.Errorf("%w: %s required", ErrInvalidOperation, name)
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
