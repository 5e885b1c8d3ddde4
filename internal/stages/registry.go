package stages

import (
	"fmt"
	"slices"

	"github.com/bartekus/matrixci/internal/runner"
)

// Pipeline builds the stage sequence in runner.StageOrder from the command
// line configured for each stage. Every stage must be configured.
func Pipeline(commands map[runner.StageName][]string) ([]runner.Stage, error) {
	out := make([]runner.Stage, 0, len(runner.StageOrder))
	for _, name := range runner.StageOrder {
		args, ok := commands[name]
		if !ok {
			return nil, fmt.Errorf("stage %s: no command configured", name)
		}
		s, err := NewExec(name, args)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	for name := range commands {
		if !slices.Contains(runner.StageOrder, name) {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
	}
	return out, nil
}
