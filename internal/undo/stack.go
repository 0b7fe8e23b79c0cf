// Package undo implements the command stack that records committed edits.
package undo

// Command is one committed, reversible change.
type Command interface {
	// Redo applies the change.
	Redo()
	// Undo reverts the change.
	Undo()
	// Text is a short description shown in command lists.
	Text() string
}

// Stack is a linear undo history. Index points one past the last applied
// command; pushing truncates anything that was undone.
type Stack struct {
	cmds  []Command
	index int
	clean int

	// Limit caps the history length; zero means unbounded.
	Limit int

	// OnChange, if set, is called after every push, undo or redo.
	OnChange func()
}

func NewStack() *Stack {
	return &Stack{}
}

// Push records a command whose effect has already been applied by the caller.
func (s *Stack) Push(cmd Command) {
	if cmd == nil {
		return
	}
	s.cmds = append(s.cmds[:s.index], cmd)
	s.index++
	if s.clean > s.index-1 {
		s.clean = -1
	}
	if s.Limit > 0 && len(s.cmds) > s.Limit {
		drop := len(s.cmds) - s.Limit
		s.cmds = s.cmds[drop:]
		s.index -= drop
		s.clean -= drop
		if s.clean < 0 {
			s.clean = -1
		}
	}
	s.changed()
}

// Execute applies cmd and records it.
func (s *Stack) Execute(cmd Command) {
	if cmd == nil {
		return
	}
	cmd.Redo()
	s.Push(cmd)
}

// Undo reverts the most recently applied command. It reports false when
// there is nothing to undo.
func (s *Stack) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.index--
	s.cmds[s.index].Undo()
	s.changed()
	return true
}

// Redo re-applies the most recently undone command.
func (s *Stack) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.cmds[s.index].Redo()
	s.index++
	s.changed()
	return true
}

func (s *Stack) CanUndo() bool { return s.index > 0 }
func (s *Stack) CanRedo() bool { return s.index < len(s.cmds) }

// Index returns the number of applied commands.
func (s *Stack) Index() int { return s.index }

// Count returns the number of recorded commands, applied or not.
func (s *Stack) Count() int { return len(s.cmds) }

// UndoText returns the text of the command Undo would revert.
func (s *Stack) UndoText() string {
	if !s.CanUndo() {
		return ""
	}
	return s.cmds[s.index-1].Text()
}

// RedoText returns the text of the command Redo would apply.
func (s *Stack) RedoText() string {
	if !s.CanRedo() {
		return ""
	}
	return s.cmds[s.index].Text()
}

// SetClean marks the current position as saved.
func (s *Stack) SetClean() { s.clean = s.index }

// IsClean reports whether the history is at the saved position.
func (s *Stack) IsClean() bool { return s.clean == s.index }

// Clear drops the whole history.
func (s *Stack) Clear() {
	s.cmds = nil
	s.index = 0
	s.clean = 0
	s.changed()
}

func (s *Stack) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}
