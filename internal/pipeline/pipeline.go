package pipeline

import (
	"errors"

	"github.com/batchpix/batchpix/internal/model"
)

// ErrEmptyStack is returned by Undo and Redo when the corresponding
// command stack is empty.
var ErrEmptyStack = errors.New("command stack is empty")

// Pipeline is an ordered sequence of operations for one job, mutated only
// through commands so every change can be undone and redone. Insertion
// order is execution order.
//
// A Pipeline is not safe for concurrent use; the owning Job serializes
// access to it.
type Pipeline struct {
	ops      []model.Operation
	undo     []Command
	redo     []Command
	onChange func()
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// OnChange registers fn to be called after every observable mutation:
// add, clear, undo and redo all notify. Reset does not.
func (p *Pipeline) OnChange(fn func()) {
	p.onChange = fn
}

func (p *Pipeline) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}

// apply executes cmd, pushes it onto the undo stack and drops the redo
// stack: a new command after an undo discards the undone branch.
func (p *Pipeline) apply(cmd Command) {
	cmd.Execute()
	p.undo = append(p.undo, cmd)
	p.redo = nil
	p.notify()
}

// AddOperation appends op through an AddOperationCommand. The operation
// contents are not validated here; that is the caller's responsibility.
func (p *Pipeline) AddOperation(op model.Operation) {
	p.apply(NewAddOperationCommand(p, op))
}

// Clear empties the operation list through a ClearPipelineCommand.
// Clearing an already-empty pipeline is reported as false and is not
// recorded as a command (nothing to undo, no notification).
func (p *Pipeline) Clear() bool {
	if len(p.ops) == 0 {
		return false
	}

	p.apply(NewClearPipelineCommand(p))

	return true
}

// Undo reverts the most recent command and moves it to the redo stack.
func (p *Pipeline) Undo() error {
	if len(p.undo) == 0 {
		return ErrEmptyStack
	}

	cmd := p.undo[len(p.undo)-1]
	p.undo = p.undo[:len(p.undo)-1]
	cmd.Undo()
	p.redo = append(p.redo, cmd)
	p.notify()

	return nil
}

// Redo re-executes the most recently undone command and moves it back to
// the undo stack. Redo notifies like every other mutation.
func (p *Pipeline) Redo() error {
	if len(p.redo) == 0 {
		return ErrEmptyStack
	}

	cmd := p.redo[len(p.redo)-1]
	p.redo = p.redo[:len(p.redo)-1]
	cmd.Execute()
	p.undo = append(p.undo, cmd)
	p.notify()

	return nil
}

// Reset drops the operation list and both stacks without going through
// the command mechanism. Used when a job is fully reset; not undoable.
func (p *Pipeline) Reset() {
	p.ops = nil
	p.undo = nil
	p.redo = nil
}

// Operations returns a copy of the current operation list in execution
// order.
func (p *Pipeline) Operations() []model.Operation {
	out := make([]model.Operation, len(p.ops))
	copy(out, p.ops)

	return out
}

// Len returns the number of operations in the pipeline.
func (p *Pipeline) Len() int { return len(p.ops) }

// CanUndo reports whether the undo stack is non-empty.
func (p *Pipeline) CanUndo() bool { return len(p.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (p *Pipeline) CanRedo() bool { return len(p.redo) > 0 }

// UndoDepth returns the undo stack depth.
func (p *Pipeline) UndoDepth() int { return len(p.undo) }

// RedoDepth returns the redo stack depth.
func (p *Pipeline) RedoDepth() int { return len(p.redo) }
