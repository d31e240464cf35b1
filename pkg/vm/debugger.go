// Package vm - debugger support
package vm

import (
	"go.uber.org/zap"

	"github.com/kristofer/jsrt/pkg/bytecode"
)

// Debugger provides breakpoint/step instrumentation for the VM, logging
// each pause through zap rather than blocking on an interactive stdin
// prompt — this engine is meant to run embedded, where a blocking
// terminal read isn't an option.
type Debugger struct {
	logger      *zap.Logger
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger creates a new debugger instance logging through logger. A
// nil logger is replaced with a no-op one.
func NewDebugger(logger *zap.Logger) *Debugger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debugger{
		logger:      logger,
		breakpoints: make(map[int]bool),
	}
}

// Enable activates the debugger.
func (d *Debugger) Enable() { d.enabled = true }

// Disable deactivates the debugger.
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode enables or disables step mode. In step mode, every
// instruction is treated as a breakpoint.
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint adds a breakpoint at the specified instruction position.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint removes a breakpoint at the specified instruction
// position.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

// ClearBreakpoints removes all breakpoints.
func (d *Debugger) ClearBreakpoints() { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether execution should pause before the
// instruction at ip: either step mode is on, or ip carries a breakpoint.
func (d *Debugger) ShouldPause(ip int) bool {
	if !d.enabled {
		return false
	}
	return d.stepMode || d.breakpoints[ip]
}

// Pause logs the paused frame's instruction, operand stack depth, and
// locals at the debug level. Unlike the original REPL, this never
// blocks: the VM keeps running immediately after the log line, which
// keeps the debugger usable from an embedder driving the VM on a
// request-handling goroutine.
func (d *Debugger) Pause(fr *frame, code *bytecode.Bytecode) {
	if fr.ip < 0 || fr.ip >= len(code.Instructions) {
		d.logger.Debug("vm paused (ip out of range)", zap.Int("ip", fr.ip), zap.String("frame", fr.name))
		return
	}
	instr := code.Instructions[fr.ip]
	d.logger.Debug("vm paused",
		zap.String("frame", fr.name),
		zap.Int("ip", fr.ip),
		zap.String("op", instr.Op.String()),
		zap.Int("operand", instr.Operand),
		zap.Int("stack_depth", len(fr.stack)),
		zap.Int("locals", len(fr.locals)),
	)
}
