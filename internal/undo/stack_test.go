package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counterCmd struct {
	v    *int
	by   int
	text string
}

func (c *counterCmd) Redo()        { *c.v += c.by }
func (c *counterCmd) Undo()        { *c.v -= c.by }
func (c *counterCmd) Text() string { return c.text }

func TestExecuteUndoRedo(t *testing.T) {
	v := 0
	s := NewStack()
	s.Execute(&counterCmd{v: &v, by: 2, text: "add two"})
	s.Execute(&counterCmd{v: &v, by: 3, text: "add three"})
	assert.Equal(t, 5, v)
	assert.Equal(t, "add three", s.UndoText())

	assert.True(t, s.Undo())
	assert.Equal(t, 2, v)
	assert.Equal(t, "add three", s.RedoText())

	assert.True(t, s.Redo())
	assert.Equal(t, 5, v)
	assert.False(t, s.Redo())
}

func TestPushDoesNotApply(t *testing.T) {
	v := 7
	s := NewStack()
	s.Push(&counterCmd{v: &v, by: 7})
	assert.Equal(t, 7, v)
	assert.True(t, s.Undo())
	assert.Equal(t, 0, v)
}

func TestPushTruncatesRedoHistory(t *testing.T) {
	v := 0
	s := NewStack()
	s.Execute(&counterCmd{v: &v, by: 1})
	s.Execute(&counterCmd{v: &v, by: 1})
	s.Undo()
	s.Execute(&counterCmd{v: &v, by: 10})

	assert.Equal(t, 2, s.Count())
	assert.False(t, s.CanRedo())
	assert.Equal(t, 11, v)
}

func TestLimitDropsOldest(t *testing.T) {
	v := 0
	s := &Stack{Limit: 2}
	for i := 0; i < 4; i++ {
		s.Execute(&counterCmd{v: &v, by: 1})
	}
	assert.Equal(t, 2, s.Count())
	assert.True(t, s.Undo())
	assert.True(t, s.Undo())
	assert.False(t, s.Undo())
	assert.Equal(t, 2, v)
}

func TestCleanState(t *testing.T) {
	v := 0
	calls := 0
	s := NewStack()
	s.OnChange = func() { calls++ }
	assert.True(t, s.IsClean())

	s.Execute(&counterCmd{v: &v, by: 1})
	assert.False(t, s.IsClean())
	s.SetClean()
	assert.True(t, s.IsClean())
	s.Undo()
	assert.False(t, s.IsClean())
	s.Redo()
	assert.True(t, s.IsClean())
	assert.Equal(t, 3, calls)
}
