package verify

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/streamcheck/compare"
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/util/logging"
)

var (
	// HookPosVerdict is triggered after each comparison. The item is a
	// Verdict.
	HookPosVerdict = &sim.HookPos{Name: "Verdict"}

	// HookPosRegenerate is triggered after reference outputs are written.
	// The item is a Regeneration.
	HookPosRegenerate = &sim.HookPos{Name: "Regenerate"}
)

// Verdict is the outcome of verifying one port of one test.
type Verdict struct {
	ID          string
	TestID      string
	TestCase    string
	TestSubcase string
	Worker      string
	Port        string
	Method      string
	Result      compare.Result
	Regenerated bool
}

// Regeneration lists the files involved in rebuilding reference outputs.
type Regeneration struct {
	Inputs     []string
	References []string
}

// LogHook writes verifier and dispatch hook events to the default slog
// logger.
type LogHook struct{}

// Func implements sim.Hook.
func (LogHook) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case Verdict:
		slog.Info("Hook.Verdict",
			"ID", item.ID,
			"TestID", item.TestID,
			"Port", item.Port,
			"Method", item.Method,
			"Passed", item.Result.Passed,
			"Regenerated", item.Regenerated,
		)
	case Regeneration:
		slog.Info("Hook.Regenerate", "References", item.References)
	case dispatch.Step:
		logging.Trace("Hook.DispatchStep",
			"RunID", item.RunID,
			"Index", item.Index,
			"Opcode", item.Opcode.String(),
			"Ports", item.Ports,
		)
	}
}
