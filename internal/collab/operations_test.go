package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
)

func newState(t *testing.T) *SceneState {
	t.Helper()
	ss, err := NewSceneState(nil)
	require.NoError(t, err)
	return ss
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// drawStroke submits a whole stroke.add gesture for client.
func drawStroke(t *testing.T, ss *SceneState, client string) {
	t.Helper()
	for _, op := range []Operation{
		{Type: OpStrokeAdd, Event: "start", U: 0, V: 0},
		{Type: OpStrokeAdd, Event: "append", U: 0.5, V: 0},
		{Type: OpStrokeAdd, Event: "finish", U: 1, V: 0.2},
	} {
		_, err := ss.Apply(client, op)
		require.NoError(t, err)
	}
}

func currentStrokes(ss *SceneState) int {
	return len(ss.eng.Scene().Current().Strokes())
}

func TestStrokeGesture(t *testing.T) {
	ss := newState(t)

	res, err := ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "start"})
	require.NoError(t, err)
	assert.Equal(t, "active", res.State)
	assert.Equal(t, int64(1), res.ServerSeq)

	_, err = ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "append", U: 0.5})
	require.NoError(t, err)
	res, err = ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "finish", U: 1, V: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "committed", res.State)
	assert.True(t, res.History.CanUndo)
	assert.Equal(t, "Add stroke", res.History.UndoText)
	assert.Equal(t, 1, currentStrokes(ss))
}

func TestGestureBelongsToItsClient(t *testing.T) {
	ss := newState(t)
	_, err := ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "start"})
	require.NoError(t, err)

	_, err = ss.Apply("b", Operation{Type: OpStrokeAdd, Event: "append", U: 1})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = ss.Apply("b", Operation{Type: OpHistoryUndo})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = ss.Apply("b", Operation{Type: OpCanvasAdd})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = ss.Apply("b", Operation{Type: OpGestureAbort})
	assert.ErrorIs(t, err, ErrBusy)

	// Another gesture family from the owner is refused by the engine.
	_, err = ss.Apply("a", Operation{Type: OpSelectionMove, Event: "start"})
	assert.ErrorIs(t, err, engine.ErrSessionActive)

	res, err := ss.Apply("a", Operation{Type: OpGestureAbort})
	require.NoError(t, err)
	assert.Equal(t, "aborted", res.State)
	assert.Equal(t, 0, currentStrokes(ss))

	_, err = ss.Apply("b", Operation{Type: OpStrokeAdd, Event: "start"})
	assert.NoError(t, err)
}

func TestReleaseAbortsOwnGestureOnly(t *testing.T) {
	ss := newState(t)
	_, err := ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "start"})
	require.NoError(t, err)

	_, ok := ss.Release("b")
	assert.False(t, ok)

	res, ok := ss.Release("a")
	require.True(t, ok)
	assert.Equal(t, "aborted", res.State)
	assert.Equal(t, 0, currentStrokes(ss))
	assert.False(t, ss.eng.Busy())

	_, ok = ss.Release("a")
	assert.False(t, ok)
}

func TestApplyRejects(t *testing.T) {
	ss := newState(t)

	_, err := ss.Apply("a", Operation{Type: "object.transform"})
	assert.ErrorIs(t, err, ErrUnknownOperation)
	_, err = ss.Apply("a", Operation{Type: OpStrokeAdd, Event: "hover"})
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = ss.Apply("a", Operation{Type: OpCanvasOffset, Event: "start"})
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = ss.Apply("a", Operation{Type: OpHistoryUndo})
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = ss.Apply("a", Operation{Type: OpCanvasDelete, CanvasID: uintPtr(42)})
	assert.ErrorIs(t, err, engine.ErrNotOwned)
	_, err = ss.Apply("a", Operation{Type: OpSelectionMove, Event: "start"})
	assert.ErrorIs(t, err, engine.ErrNoSelection)

	assert.Equal(t, int64(0), ss.ServerSeq(), "rejected operations do not advance the sequence")
	assert.False(t, ss.Dirty())
}

func TestCanvasOperations(t *testing.T) {
	ss := newState(t)
	s := ss.eng.Scene()

	res, err := ss.Apply("a", Operation{
		Type:   OpCanvasAdd,
		Normal: &document.Vec3{1, 0, 0},
		Center: &document.Vec3{2, 0, 0},
	})
	require.NoError(t, err)
	require.Equal(t, 4, s.NumCanvases())
	assert.Equal(t, "Add Canvas3", res.History.UndoText)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, engine.CanvasAdded, res.Events[0].Type)

	_, err = ss.Apply("a", Operation{Type: OpCanvasCurrent, CanvasID: uintPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, uint(3), s.Current().ID())
	assert.Equal(t, uint(0), s.Previous().ID())

	_, err = ss.Apply("a", Operation{Type: OpCanvasVisibility, CanvasID: uintPtr(1), Visible: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, s.Canvas(1).Visible())

	_, err = ss.Apply("a", Operation{Type: OpCanvasOthers, Visible: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, s.CanvasesButCurrentVisible())

	_, err = ss.Apply("a", Operation{Type: OpCanvasDelete, CanvasID: uintPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumCanvases())
	require.NotNil(t, s.Current())
	assert.Equal(t, uint(0), s.Current().ID(), "previous canvas takes over")

	_, err = ss.Apply("a", Operation{Type: OpHistoryUndo})
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumCanvases())
	assert.Equal(t, uint(3), s.Current().ID())
}

func TestCanvasOffsetGesture(t *testing.T) {
	ss := newState(t)
	c := ss.eng.Scene().Current()

	for _, op := range []Operation{
		{Type: OpCanvasOffset, Event: "start", Point: &document.Vec3{0, 0, 0}},
		{Type: OpCanvasOffset, Event: "append", Point: &document.Vec3{0, 0, 1}},
		{Type: OpCanvasOffset, Event: "finish", Point: &document.Vec3{0, 0, 2}},
	} {
		_, err := ss.Apply("a", op)
		require.NoError(t, err)
	}
	assert.InDelta(t, 2, c.Frame().Translation.Z, 1e-9)
	assert.Equal(t, "Offset Canvas0", ss.eng.UndoText())
}

func TestEntityOperations(t *testing.T) {
	ss := newState(t)
	drawStroke(t, ss, "a")
	c := ss.eng.Scene().Current()

	_, err := ss.Apply("a", Operation{Type: OpEntitySelect, Entity: EntityStroke, Index: intPtr(0)})
	require.NoError(t, err)
	assert.Len(t, c.Selection(), 1)

	_, err = ss.Apply("a", Operation{Type: OpEntitySelect, Entity: EntityStroke, Index: intPtr(0), Select: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, c.Selection())

	_, err = ss.Apply("a", Operation{Type: OpSelectionAll})
	require.NoError(t, err)
	assert.Len(t, c.Selection(), 1)
	_, err = ss.Apply("a", Operation{Type: OpSelectionClear})
	require.NoError(t, err)
	assert.Empty(t, c.Selection())

	_, err = ss.Apply("a", Operation{Type: OpEntitySelect, Entity: EntityStroke, Index: intPtr(5)})
	assert.ErrorIs(t, err, engine.ErrNotOwned)
	_, err = ss.Apply("a", Operation{Type: OpEntitySelect, Entity: "mesh", Index: intPtr(0)})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = ss.Apply("a", Operation{Type: OpPhotoAdd, Path: "/assets/asset_x.png", Width: 200, Height: 100})
	require.NoError(t, err)
	require.Len(t, c.Photos(), 1)

	_, err = ss.Apply("a", Operation{Type: OpEntityDelete, Entity: EntityPhoto, Index: intPtr(0)})
	require.NoError(t, err)
	assert.Empty(t, c.Photos())
	_, err = ss.Apply("a", Operation{Type: OpEntityDelete, Entity: EntityStroke, Index: intPtr(0)})
	require.NoError(t, err)
	assert.Empty(t, c.Strokes())
}

func TestBookmarkOperations(t *testing.T) {
	ss := newState(t)
	s := ss.eng.Scene()
	cam := &CameraPose{Eye: document.Vec3{0, 0, 10}, Up: document.Vec3{0, 1, 0}}

	res, err := ss.Apply("a", Operation{Type: OpBookmarkAdd, Camera: cam})
	require.NoError(t, err)
	require.Len(t, s.Bookmarks(), 2)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, engine.BookmarksChanged, res.Events[0].Type)

	moved := &CameraPose{Eye: document.Vec3{5, 0, 0}, Up: document.Vec3{0, 0, 1}}
	_, err = ss.Apply("a", Operation{Type: OpBookmarkUpdate, Index: intPtr(1), Camera: moved})
	require.NoError(t, err)
	assert.Equal(t, engine.V3(5, 0, 0), s.Bookmarks()[1].Pose().Eye)

	_, err = ss.Apply("a", Operation{Type: OpBookmarkDelete, Index: intPtr(7)})
	assert.ErrorIs(t, err, engine.ErrBookmarkRange)
	_, err = ss.Apply("a", Operation{Type: OpBookmarkDelete, Index: intPtr(0)})
	require.NoError(t, err)
	assert.Len(t, s.Bookmarks(), 1)
}

func TestDirtyTracking(t *testing.T) {
	ss := newState(t)
	assert.False(t, ss.Dirty())

	drawStroke(t, ss, "a")
	assert.True(t, ss.Dirty())

	doc, seq := ss.Snapshot()
	assert.Equal(t, int64(3), seq)
	require.Len(t, doc.Canvases, 3)
	assert.Len(t, doc.Canvases[0].Strokes, 1)

	ss.MarkSaved(seq)
	assert.False(t, ss.Dirty())
	assert.True(t, ss.eng.IsClean())

	_, err := ss.Apply("a", Operation{Type: OpHistoryUndo})
	require.NoError(t, err)
	assert.True(t, ss.Dirty())

	// A stale save does not clear newer changes.
	ss.MarkSaved(seq)
	assert.True(t, ss.Dirty())
}

func TestPick(t *testing.T) {
	ss := newState(t)
	assert.Equal(t, Pick{Index: -1}, ss.Pick(0.5, 0, 0.05))

	drawStroke(t, ss, "a")
	_, err := ss.Apply("a", Operation{Type: OpPhotoAdd, Path: "p.png", Width: 100, Height: 100})
	require.NoError(t, err)

	assert.Equal(t, Pick{Entity: EntityStroke, Index: 0}, ss.Pick(0.5, 0.01, 0.05))
	assert.Equal(t, Pick{Entity: EntityPhoto, Index: 0}, ss.Pick(-0.2, -0.2, 0.05))
	assert.Equal(t, Pick{Index: -1}, ss.Pick(3, 3, 0.05))
	assert.True(t, ss.History().CanUndo)
}
