package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"

	"github.com/cherish/cherish/backend-go/internal/undo"
)

// threeCanvases returns a scene with canvases 0, 1 and 2 and canvas 0
// current.
func threeCanvases(t *testing.T) (*Scene, *undo.Stack, []*Canvas) {
	t.Helper()
	s := NewScene()
	stack := undo.NewStack()
	var cs []*Canvas
	for range 3 {
		cs = append(cs, s.AddCanvas(stack, IdentityFrame(), ""))
	}
	require.True(t, s.SetCanvasCurrent(cs[0]))
	stack.Clear()
	return s, stack, cs
}

func TestAddCanvasNaming(t *testing.T) {
	s, _, cs := threeCanvases(t)
	assert.Equal(t, "Canvas0", cs[0].Name())
	assert.Equal(t, "Canvas2", cs[2].Name())
	assert.Equal(t, uint(3), s.NextCanvasID())
	assert.Same(t, cs[1], s.Canvas(1))
	assert.Same(t, cs[1], s.CanvasByName("Canvas1"))
	assert.Nil(t, s.Canvas(7))
	assert.Equal(t, 2, s.CanvasIndex(cs[2]))
	assert.Same(t, cs[2], s.CanvasAt(2))
	assert.Nil(t, s.CanvasAt(3))
}

func TestAddCanvasDoesNotChangeCurrent(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	s.AddCanvas(stack, IdentityFrame(), "extra")
	assert.Same(t, cs[0], s.Current())
}

func TestSetCanvasCurrent(t *testing.T) {
	s, _, cs := threeCanvases(t)

	assert.False(t, s.SetCanvasCurrent(nil))
	assert.False(t, s.SetCanvasCurrent(newCanvas(99, "", IdentityFrame())))
	assert.Same(t, cs[0], s.Current())

	require.True(t, s.SetCanvasCurrent(cs[1]))
	assert.Same(t, cs[1], s.Current())
	assert.Same(t, cs[0], s.Previous())
	assert.True(t, cs[1].IsCurrent())
	assert.True(t, cs[0].IsPrevious())

	require.True(t, s.SetCanvasCurrent(cs[1]))
	assert.Same(t, cs[0], s.Previous(), "setting the current canvas again is a no-op")
}

func TestDeleteCurrentElectsPrevious(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.True(t, s.SetCanvasCurrent(cs[1]))
	require.True(t, s.SetCanvasCurrent(cs[0]))
	require.Same(t, cs[1], s.Previous())

	require.NoError(t, s.DeleteCanvas(stack, cs[0]))
	assert.Same(t, cs[1], s.Current())
	assert.Nil(t, s.Previous())
	assert.True(t, cs[1].IsCurrent())
	assert.False(t, cs[0].IsCurrent())
}

func TestDeleteCurrentWithoutPrevious(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.Nil(t, s.Previous())
	require.NoError(t, s.DeleteCanvas(stack, cs[0]))
	assert.Same(t, cs[1], s.Current())
}

func TestDeleteLastCanvasClearsRoles(t *testing.T) {
	s := NewScene()
	stack := undo.NewStack()
	c := s.AddCanvas(stack, IdentityFrame(), "")
	require.True(t, s.SetCanvasCurrent(c))
	require.True(t, s.SetCanvasSelected(c))
	require.True(t, s.SetCanvasTarget(c))

	require.NoError(t, s.DeleteCanvas(stack, c))
	assert.Nil(t, s.Current())
	assert.Nil(t, s.Previous())
	assert.Nil(t, s.Selected())
	assert.Nil(t, s.Target())
	assert.Nil(t, s.CloneSource())
	assert.Zero(t, s.NumCanvases())
}

func TestDeleteClearsDanglingRoles(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.True(t, s.SetCanvasSelected(cs[2]))
	require.True(t, s.SetCanvasTarget(cs[2]))

	require.NoError(t, s.DeleteCanvas(stack, cs[2]))
	assert.Nil(t, s.Selected())
	assert.Nil(t, s.Target())
	assert.Same(t, cs[0], s.Current())
}

func TestDeleteCanvasUndo(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.True(t, s.SetCanvasCurrent(cs[1]))
	st := strokeOf(0, 0, 1, 1)
	cs[1].insert(st, -1)

	require.NoError(t, s.DeleteCanvas(stack, cs[1]))
	assert.Equal(t, 2, s.NumCanvases())
	assert.Same(t, cs[0], s.Current())

	require.True(t, stack.Undo())
	assert.Equal(t, 3, s.NumCanvases())
	assert.Same(t, cs[1], s.CanvasAt(1))
	assert.Same(t, cs[1], s.Current())
	assert.Same(t, cs[0], s.Previous())
	assert.Same(t, st, cs[1].Strokes()[0])

	require.True(t, stack.Redo())
	assert.Nil(t, s.Canvas(1))
	assert.Equal(t, uint(3), s.NextCanvasID(), "ids are never reused")
}

func TestDeleteCanvasUndoKeepsLaterRoles(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.True(t, s.SetCanvasPrevious(cs[1]))

	require.NoError(t, s.DeleteCanvas(stack, cs[1]))
	assert.Nil(t, s.Previous())
	require.True(t, s.SetCanvasCurrent(cs[2]))

	require.True(t, stack.Undo())
	assert.Same(t, cs[2], s.Current(), "current set after the delete stays")
	assert.Same(t, cs[0], s.Previous())
	assert.True(t, cs[2].IsCurrent())
	assert.False(t, cs[1].IsPrevious())
}

func TestDeleteCurrentCanvasUndoRetakesCurrent(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	require.True(t, s.SetCanvasCurrent(cs[1]))
	require.True(t, s.SetCanvasSelected(cs[1]))

	require.NoError(t, s.DeleteCanvas(stack, cs[1]))
	require.True(t, s.SetCanvasCurrent(cs[2]))
	require.True(t, s.SetCanvasSelected(cs[2]))

	require.True(t, stack.Undo())
	assert.Same(t, cs[1], s.Current())
	assert.Same(t, cs[2], s.Previous())
	assert.Same(t, cs[2], s.Selected(), "a role taken since the delete is kept")
	assert.True(t, cs[1].IsCurrent())
	assert.True(t, cs[2].IsPrevious())
}

func TestDeleteCanvasNotOwned(t *testing.T) {
	s := NewScene()
	err := s.DeleteCanvas(nil, newCanvas(0, "", IdentityFrame()))
	assert.True(t, errors.Is(err, ErrNotOwned))
	assert.True(t, IsPrecondition(err))
}

func TestNotificationsAreSynchronous(t *testing.T) {
	s := NewScene()
	var got []NotificationType
	unsubscribe := s.Subscribe(func(n Notification) { got = append(got, n.Type) })

	c := s.AddCanvas(nil, IdentityFrame(), "")
	assert.Equal(t, []NotificationType{CanvasAdded}, got)

	got = nil
	s.SetCanvasCurrent(c)
	assert.Equal(t, []NotificationType{CanvasRoleChanged}, got)

	unsubscribe()
	got = nil
	s.AddCanvas(nil, IdentityFrame(), "")
	assert.Empty(t, got)
}

func TestAddPhoto(t *testing.T) {
	s := NewScene()
	_, err := s.AddPhoto(nil, "a.png", 10, 10)
	assert.ErrorIs(t, err, ErrNoCurrentCanvas)

	c := s.AddCanvas(nil, IdentityFrame(), "")
	s.SetCanvasCurrent(c)
	stack := undo.NewStack()
	p, err := s.AddPhoto(stack, "a.png", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, s.PhotoIndex(p, c))
	assert.Same(t, p, c.Photo(p.ID()))

	require.True(t, stack.Undo())
	assert.Equal(t, -1, s.PhotoIndex(p, c))
	require.True(t, stack.Redo())
	assert.Equal(t, 0, s.PhotoIndex(p, c))

	require.NoError(t, s.DeletePhoto(stack, p))
	assert.Empty(t, c.Photos())
	assert.ErrorIs(t, s.DeletePhoto(stack, p), ErrNotOwned)
}

func TestDeleteStrokeUndoKeepsRow(t *testing.T) {
	s, stack, cs := threeCanvases(t)
	a, b, c := strokeOf(0, 0, 1, 0), strokeOf(0, 1, 1, 1), strokeOf(0, 2, 1, 2)
	for _, st := range []*Stroke{a, b, c} {
		cs[0].insert(st, -1)
	}
	require.NoError(t, s.DeleteStroke(stack, b))
	assert.Equal(t, []*Stroke{a, c}, cs[0].Strokes())
	require.True(t, stack.Undo())
	assert.Equal(t, []*Stroke{a, b, c}, cs[0].Strokes())
}

func TestBookmarks(t *testing.T) {
	s := NewScene()
	stack := undo.NewStack()
	pose := CameraPose{Eye: Vec3{0, 0, 10}, Up: Vec3{0, 1, 0}}

	b0 := s.AddBookmark(stack, pose)
	b1 := s.AddBookmark(stack, pose)
	assert.Equal(t, "Bookmark0", b0.Name())
	assert.Equal(t, "Bookmark1", b1.Name())

	moved := CameraPose{Eye: Vec3{5, 0, 0}, Up: Vec3{0, 0, 1}}
	require.NoError(t, s.UpdateBookmark(stack, 1, moved))
	assert.Equal(t, moved, b1.Pose())
	require.True(t, stack.Undo())
	assert.Equal(t, pose, b1.Pose())

	require.NoError(t, s.DeleteBookmark(stack, 0))
	assert.Equal(t, []*Bookmark{b1}, s.Bookmarks())
	require.True(t, stack.Undo())
	assert.Equal(t, []*Bookmark{b0, b1}, s.Bookmarks())

	assert.ErrorIs(t, s.DeleteBookmark(stack, 5), ErrBookmarkRange)
	assert.ErrorIs(t, s.UpdateBookmark(stack, -1, pose), ErrBookmarkRange)
}

func TestPushSelection(t *testing.T) {
	s := NewScene()
	stack := undo.NewStack()
	from := s.AddCanvas(stack, IdentityFrame(), "")
	to := s.AddCanvas(stack, Frame{Rotation: QuatIdentity(), Translation: Vec3{0, 0, -5}}, "")
	s.SetCanvasCurrent(from)

	st := strokeOf(1, 0, 2, 0)
	from.insert(st, -1)

	assert.ErrorIs(t, s.PushSelection(stack, Vec3{0, 0, 5}), ErrNoTarget)
	s.SetCanvasTarget(to)
	assert.ErrorIs(t, s.PushSelection(stack, Vec3{0, 0, 5}), ErrNoSelection)

	from.Select(st)
	require.NoError(t, s.PushSelection(stack, Vec3{0, 0, 5}))
	assert.Empty(t, from.Strokes())
	require.Equal(t, []*Stroke{st}, to.Strokes())
	// The eye is 5 above the source plane and 10 above the target, so the
	// projection doubles distances from the eye axis.
	pts := st.Points()
	assert.InDelta(t, 2, pts[0].X, 1e-9)
	assert.InDelta(t, 4, pts[1].X, 1e-9)

	require.True(t, stack.Undo())
	assert.Empty(t, to.Strokes())
	assert.Equal(t, []vec.Vec2{{X: 1}, {X: 2}}, from.Strokes()[0].Points())
}

func TestCanvasVisibility(t *testing.T) {
	s, _, cs := threeCanvases(t)
	s.SetCanvasesButCurrent(false)
	assert.True(t, cs[0].Visible())
	assert.False(t, cs[1].Visible())
	assert.False(t, s.CanvasesButCurrentVisible())
	assert.True(t, s.SetCanvasVisibility(cs[2], true))
	assert.True(t, s.CanvasesButCurrentVisible())
}

func TestClear(t *testing.T) {
	s, _, _ := threeCanvases(t)
	s.AddBookmark(nil, CameraPose{})
	s.SetFilePath("scene.json")
	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.False(t, s.HasFilePath())
	assert.Nil(t, s.Current())
	assert.Zero(t, s.NextCanvasID())
}
