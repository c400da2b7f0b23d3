// Package solver runs ElmerSolver on the generated input files.
package solver

import (
	"context"
	"path/filepath"

	"gemfield/fault"
	"gemfield/model"
	"gemfield/runner"
	"gemfield/sif"

	log "github.com/sirupsen/logrus"
)

// Commands returns one solver invocation per input file, primary first. Both
// run inside dir because the mesh and the results live there.
func Commands(p model.Params, dir string) []runner.Command {
	var cmds []runner.Command
	for _, v := range sif.Variants {
		cmds = append(cmds, runner.Command{
			Program: p.Tools.ElmerSolver,
			Args:    []string{v.File},
			Dir:     dir,
		})
	}
	return cmds
}

// Solve runs the commands one after the other. Both solves write into the same
// directory, so they never overlap.
func Solve(ctx context.Context, r runner.Runner, p model.Params, dir string) error {
	for _, c := range Commands(p, dir) {
		log.WithFields(log.Fields{
			"input": c.Args[0],
			"dir":   filepath.Base(dir),
		}).Info("求解电场")
		if _, err := r.Run(ctx, c); err != nil {
			if p.Strict() || !fault.Is(err, fault.ExternalToolFailure) || ctx.Err() != nil {
				return err
			}
			log.WithError(err).Warn("忽略求解器错误")
		}
	}
	return nil
}
