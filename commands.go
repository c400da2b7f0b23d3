package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemfield/config"
	"gemfield/fsutil"
	"gemfield/model"
	"gemfield/pipeline"
	"gemfield/potential"
	"gemfield/runner"
	"gemfield/server"
	"gemfield/sif"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type paramFlags struct {
	relaxed bool
	workers int
	workDir string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.relaxed, "relaxed", false, "skip parameter checks and ignore tool failures")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "layers meshed concurrently (0 keeps the config value)")
	cmd.Flags().StringVarP(&f.workDir, "workdir", "C", ".", "directory holding the .geo files")
}

// loadParams reads the config named in args, or conf/config.ini when present,
// or falls back to the built-in defaults.
func (f *paramFlags) loadParams(args []string) (model.Params, error) {
	p := config.Default()
	path := ""
	switch {
	case len(args) > 0:
		path = args[0]
	case fsutil.Exists(config.DefaultPath):
		path = config.DefaultPath
	}
	if path != "" {
		var err error
		if p, err = config.Load(path); err != nil {
			return model.Params{}, fmt.Errorf("loading config: %w", err)
		}
	}
	if f.relaxed {
		p.Mode = model.ModeRelaxed
	}
	if f.workers > 0 {
		p.Workers = f.workers
	}
	return p, nil
}

func runCmd() *cobra.Command {
	var (
		flags               paramFlags
		skipMesh, skipSolve bool
		echo                bool
	)
	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Mesh all layers, write the solver inputs, solve both fields and write the dielectric table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := flags.loadParams(args)
			if err != nil {
				return err
			}
			var out io.Writer
			if echo {
				out = os.Stderr
			}
			return runPipeline(p, runner.NewExec(p.Tools.Timeout, out), pipeline.Options{
				WorkDir:   flags.workDir,
				SkipMesh:  skipMesh,
				SkipSolve: skipSolve,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&skipMesh, "skip-mesh", false, "do not run gmsh and ElmerGrid")
	cmd.Flags().BoolVar(&skipSolve, "skip-solve", false, "do not run ElmerSolver")
	cmd.Flags().BoolVar(&echo, "echo", false, "show external tool output")
	return cmd
}

func sifCmd() *cobra.Command {
	var flags paramFlags
	cmd := &cobra.Command{
		Use:   "sif [config]",
		Short: "Write only gem.sif, gemWT.sif and dielectrics.dat",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := flags.loadParams(args)
			if err != nil {
				return err
			}
			return runPipeline(p, runner.NewExec(p.Tools.Timeout, nil), pipeline.Options{
				WorkDir:   flags.workDir,
				SkipMesh:  true,
				SkipSolve: true,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runPipeline(p model.Params, r runner.Runner, opts pipeline.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.New(p, r, opts).Run(ctx)
	if report != nil {
		printReport(os.Stdout, report)
	}
	return err
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "Run %s -> %s\n", r.RunID, r.Folder)
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  %-12s %-8s %s", s.Name, s.State, s.Elapsed.Round(time.Millisecond))
		if s.Error != "" {
			fmt.Fprintf(w, "  %s", s.Error)
		}
		fmt.Fprintln(w)
	}
	for _, a := range r.Artifacts {
		fmt.Fprintf(w, "  wrote %s\n", a)
	}
}

func potentialsCmd() *cobra.Command {
	var (
		flags  paramFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "potentials [config]",
		Short: "Print the boundary potentials from drift cathode to readout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := flags.loadParams(args)
			if err != nil {
				return err
			}
			pots := potential.Calculate(p)
			if err := potential.Validate(p, pots); err != nil {
				return err
			}
			return printPotentials(os.Stdout, pots, asJSON)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as a JSON array")
	return cmd
}

func printPotentials(w io.Writer, pots []float64, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(pots)
	}
	fmt.Fprintf(w, "%-10s %14s %10s\n", "Boundary", "Potential [V]", "Weighting")
	for i, v := range pots {
		fmt.Fprintf(w, "%-10d %14s %10d\n", model.BoundaryBase+i, sif.FormatReal(v), potential.Weighting(i, len(pots)))
	}
	return nil
}

func serveCmd() *cobra.Command {
	var (
		flags     paramFlags
		addr      string
		anyOrigin bool
	)
	cmd := &cobra.Command{
		Use:   "serve [config]",
		Short: "Serve runs over a websocket on /ws",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := flags.loadParams(args)
			if err != nil {
				return err
			}
			upgrader := websocket.Upgrader{
				ReadBufferSize:  1024,
				WriteBufferSize: 1024,
			}
			// 默认只接受同源请求
			if anyOrigin {
				upgrader.CheckOrigin = func(r *http.Request) bool {
					return true
				}
			}
			s := server.NewServer(addr, upgrader, runner.NewExec(p.Tools.Timeout, nil), p, pipeline.Options{WorkDir: flags.workDir})
			return s.Serve()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&addr, "addr", "a", ":9000", "listen address")
	cmd.Flags().BoolVar(&anyOrigin, "allow-any-origin", false, "accept websocket upgrades from any Origin")
	return cmd
}
