package pipeline

import "github.com/batchpix/batchpix/internal/model"

// Command is an executable, undoable mutation of a Pipeline. A command
// holds a direct reference to the pipeline it mutates and nothing else;
// Undo after Execute restores the exact prior operation list.
type Command interface {
	Execute()
	Undo()
}

// AddOperationCommand appends one operation to the pipeline.
type AddOperationCommand struct {
	pipeline *Pipeline
	op       model.Operation
}

// NewAddOperationCommand creates a command that appends op to p.
func NewAddOperationCommand(p *Pipeline, op model.Operation) *AddOperationCommand {
	return &AddOperationCommand{pipeline: p, op: op}
}

func (c *AddOperationCommand) Execute() {
	c.pipeline.ops = append(c.pipeline.ops, c.op)
}

func (c *AddOperationCommand) Undo() {
	c.pipeline.ops = c.pipeline.ops[:len(c.pipeline.ops)-1]
}

// ClearPipelineCommand empties the operation list, keeping a snapshot of
// the cleared operations so the clear can be undone.
type ClearPipelineCommand struct {
	pipeline *Pipeline
	snapshot []model.Operation
}

// NewClearPipelineCommand creates a command that clears p.
func NewClearPipelineCommand(p *Pipeline) *ClearPipelineCommand {
	return &ClearPipelineCommand{pipeline: p}
}

func (c *ClearPipelineCommand) Execute() {
	c.snapshot = c.pipeline.ops
	c.pipeline.ops = nil
}

func (c *ClearPipelineCommand) Undo() {
	c.pipeline.ops = c.snapshot
	c.snapshot = nil
}
