// Package pipeline runs the generator steps in order and stops at the first
// failure: validate, potentials, mesh, sif, solve, dielectrics.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gemfield/config"
	"gemfield/dielectric"
	"gemfield/fault"
	"gemfield/mesh"
	"gemfield/model"
	"gemfield/potential"
	"gemfield/runner"
	"gemfield/sif"
	"gemfield/solver"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	StepValidate    = "validate"
	StepPotentials  = "potentials"
	StepMesh        = "mesh"
	StepSif         = "sif"
	StepSolve       = "solve"
	StepDielectrics = "dielectrics"
)

type Options struct {
	// directory holding the .geo files; the output folder is created inside
	WorkDir   string
	SkipMesh  bool
	SkipSolve bool
	Hub       *Hub
}

// Step is one fallible stage of a run.
type Step struct {
	Name string
	Skip bool
	Fn   func(ctx context.Context) error
}

type StepReport struct {
	Name    string        `json:"name"`
	State   State         `json:"state"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Report summarises a run, successful or not.
type Report struct {
	RunID      string       `json:"run_id"`
	Folder     string       `json:"folder"`
	Potentials []float64    `json:"potentials"`
	Artifacts  []string     `json:"artifacts"`
	Steps      []StepReport `json:"steps"`
}

type Pipeline struct {
	p      model.Params
	runner runner.Runner
	opts   Options
	report *Report
	entry  *log.Entry
}

func New(p model.Params, r runner.Runner, opts Options) *Pipeline {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	id := uuid.NewString()
	return &Pipeline{
		p:      p.Clone(),
		runner: r,
		opts:   opts,
		report: &Report{
			RunID:  id,
			Folder: filepath.Join(opts.WorkDir, p.Folder),
		},
		entry: log.WithField("run", id),
	}
}

func (pl *Pipeline) RunID() string {
	return pl.report.RunID
}

// Steps lists the stages in execution order.
func (pl *Pipeline) Steps() []Step {
	return []Step{
		{Name: StepValidate, Fn: pl.validate},
		{Name: StepPotentials, Fn: pl.potentials},
		{Name: StepMesh, Skip: pl.opts.SkipMesh, Fn: pl.runMesh},
		{Name: StepSif, Fn: pl.writeSif},
		{Name: StepSolve, Skip: pl.opts.SkipSolve, Fn: pl.runSolver},
		{Name: StepDielectrics, Fn: pl.writeDielectrics},
	}
}

// Run executes every step. The report is returned even when a step fails.
func (pl *Pipeline) Run(ctx context.Context) (*Report, error) {
	pl.entry.WithFields(log.Fields{
		"folder": pl.report.Folder,
		"type":   pl.p.Type,
		"mode":   pl.p.Mode,
	}).Info("开始生成")

	for _, s := range pl.Steps() {
		if s.Skip {
			pl.record(s.Name, StateSkipped, 0, nil)
			continue
		}
		if err := ctx.Err(); err != nil {
			pl.record(s.Name, StateFailed, 0, err)
			return pl.report, err
		}
		pl.publish(s.Name, StateStarted, "")
		start := time.Now()
		err := s.Fn(ctx)
		pl.record(s.Name, stateOf(err), time.Since(start), err)
		if err != nil {
			pl.entry.WithError(err).WithField("step", s.Name).Error("生成失败")
			return pl.report, err
		}
	}
	pl.entry.WithField("artifacts", len(pl.report.Artifacts)).Info("生成完成")
	return pl.report, nil
}

func stateOf(err error) State {
	if err != nil {
		return StateFailed
	}
	return StateDone
}

func (pl *Pipeline) record(name string, state State, elapsed time.Duration, err error) {
	sr := StepReport{Name: name, State: state, Elapsed: elapsed}
	msg := ""
	if err != nil {
		sr.Error = err.Error()
		msg = sr.Error
	}
	pl.report.Steps = append(pl.report.Steps, sr)
	pl.publish(name, state, msg)
}

func (pl *Pipeline) publish(step string, state State, msg string) {
	pl.opts.Hub.Publish(Event{
		RunID:   pl.report.RunID,
		Step:    step,
		State:   state,
		Message: msg,
		Time:    time.Now(),
	})
}

func (pl *Pipeline) validate(context.Context) error {
	return config.Validate(pl.p)
}

func (pl *Pipeline) potentials(context.Context) error {
	pots := potential.Calculate(pl.p)
	if err := potential.Validate(pl.p, pots); err != nil {
		return err
	}
	pl.report.Potentials = pots
	return nil
}

func (pl *Pipeline) runMesh(ctx context.Context) error {
	dir, err := mesh.NewDriver(pl.runner, pl.p, pl.opts.WorkDir).Run(ctx)
	if err != nil {
		return err
	}
	pl.report.Artifacts = append(pl.report.Artifacts, dir)
	return nil
}

func (pl *Pipeline) writeSif(context.Context) error {
	if err := os.MkdirAll(pl.report.Folder, 0o755); err != nil {
		return fault.IO("create output folder", err)
	}
	paths, err := sif.Write(pl.report.Folder, pl.p, pl.report.Potentials)
	if err != nil {
		return err
	}
	pl.report.Artifacts = append(pl.report.Artifacts, paths...)
	return nil
}

func (pl *Pipeline) runSolver(ctx context.Context) error {
	return solver.Solve(ctx, pl.runner, pl.p, pl.report.Folder)
}

func (pl *Pipeline) writeDielectrics(context.Context) error {
	name, err := dielectric.Write(pl.report.Folder, pl.p)
	if err != nil {
		return err
	}
	pl.report.Artifacts = append(pl.report.Artifacts, name)
	return nil
}
