package executor

import (
	"os/exec"
	"strings"

	"aicoder/pkg/config"
	execx "aicoder/pkg/exec"
)

func defaultLookPath() func(string) (string, error) {
	return exec.LookPath
}

// New selects the executor variant: a configured coder command delegates all
// editing to that CLI, otherwise changes come from LLM-planned edits.
func New(cfg *config.Config, runner execx.Executor) (CodeChangeExecutor, error) {
	if cfg.CoderCommand != "" {
		return NewDelegatedCLIExecutor(strings.Fields(cfg.CoderCommand), runner)
	}
	return NewStructuredPlanExecutor(cfg.LLM, runner)
}
