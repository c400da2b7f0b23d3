// Package mesh drives gmsh and ElmerGrid: every layer geometry is meshed and
// converted, the converted meshes are united into the output folder, and the
// per-layer intermediates are removed.
package mesh

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"gemfield/fault"
	"gemfield/fsutil"
	"gemfield/model"
	"gemfield/runner"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ElmerGrid format codes.
const (
	formatElmer = "2"
	formatGmsh  = "14"
)

type Driver struct {
	runner runner.Runner
	p      model.Params
	// directory holding the .geo files; all tools run here
	workDir string
}

func NewDriver(r runner.Runner, p model.Params, workDir string) *Driver {
	return &Driver{runner: r, p: p, workDir: workDir}
}

// Layers returns the geometries to mesh. A strict run refuses a geometry list
// whose length differs from the layer descriptor; a relaxed run meshes the
// common prefix.
func (d *Driver) Layers() ([]string, error) {
	n, g := d.p.NTOT(), len(d.p.Geometries)
	if n != g {
		if d.p.Strict() {
			return nil, fault.Invalid("geometries", "type %q has %d layers but %d geometries are listed", d.p.Type, n, g)
		}
		log.WithFields(log.Fields{
			"type":       d.p.Type,
			"geometries": g,
		}).Warnf("层数与几何文件数不一致，只处理前 %d 层", min(n, g))
	}
	layers := d.p.Layers()
	if len(layers) == 0 {
		return nil, fault.Invalid("geometries", "no layer geometry to mesh")
	}
	if err := d.checkPaths(layers); err != nil {
		return nil, err
	}
	return layers, nil
}

// checkPaths refuses layer and folder names that would resolve outside the
// work directory. Cleanup removes paths built from them, so this holds in
// every mode.
func (d *Driver) checkPaths(layers []string) error {
	if !filepath.IsLocal(d.p.Folder) {
		return fault.Invalid("folder", "output folder %q is not a local path", d.p.Folder)
	}
	for _, geo := range layers {
		if !filepath.IsLocal(geo) {
			return fault.Invalid("geometries", "geometry %q is not a local path", geo)
		}
	}
	return nil
}

// Run meshes, converts, unites and centralizes, then removes the per-layer
// files. It returns the path of the united mesh directory.
func (d *Driver) Run(ctx context.Context) (string, error) {
	layers, err := d.Layers()
	if err != nil {
		return "", err
	}

	if err := d.meshLayers(ctx, layers); err != nil {
		return "", err
	}
	if err := d.run(ctx, d.UniteCommand(layers)); err != nil {
		return "", err
	}
	if err := d.run(ctx, d.CentralizeCommand()); err != nil {
		return "", err
	}

	log.Info("删除中间文件")
	if err := fsutil.RemoveAll(d.Intermediates(layers)...); err != nil {
		return "", fault.IO("remove intermediate meshes", err)
	}
	return filepath.Join(d.workDir, d.p.Folder), nil
}

func (d *Driver) meshLayers(ctx context.Context, layers []string) error {
	g, ctx := errgroup.WithContext(ctx)
	workers := d.p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, geo := range layers {
		i, geo := i, geo
		g.Go(func() error {
			log.WithFields(log.Fields{
				"layer": i + 1,
				"total": len(layers),
				"geo":   geo,
			}).Info("网格划分")
			for _, c := range d.LayerCommands(i, geo) {
				if err := d.run(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// run executes c; a relaxed run only logs a failing tool and carries on.
func (d *Driver) run(ctx context.Context, c runner.Command) error {
	_, err := d.runner.Run(ctx, c)
	if err == nil {
		return nil
	}
	if !d.p.Strict() && fault.Is(err, fault.ExternalToolFailure) && ctx.Err() == nil {
		log.WithError(err).Warn("忽略外部工具错误")
		return nil
	}
	return err
}

// LayerCommands meshes layer i with second-order optimised elements and
// converts the result to Elmer format.
func (d *Driver) LayerCommands(i int, geo string) []runner.Command {
	args := []string{geo + ".geo", "-3", "-order", "2", "-optimize"}
	if d.p.ForwardGeometry {
		args = append(args, d.geometryArgs(i)...)
	}
	return []runner.Command{
		{Program: d.p.Tools.Gmsh, Args: args, Dir: d.workDir},
		{Program: d.p.Tools.ElmerGrid, Args: []string{formatGmsh, formatElmer, geo + ".msh"}, Dir: d.workDir},
	}
}

func (d *Driver) UniteCommand(layers []string) runner.Command {
	args := []string{formatElmer, formatElmer, layers[0]}
	for _, geo := range layers[1:] {
		args = append(args, "-in", geo)
	}
	args = append(args, "-unite", "-out", d.p.Folder, "-merge", FormatTolerance(d.p.Tools.MergeTolerance), "-autoclean")
	return runner.Command{Program: d.p.Tools.ElmerGrid, Args: args, Dir: d.workDir}
}

func (d *Driver) CentralizeCommand() runner.Command {
	return runner.Command{
		Program: d.p.Tools.ElmerGrid,
		Args:    []string{formatElmer, formatElmer, d.p.Folder, "-centralize"},
		Dir:     d.workDir,
	}
}

// Intermediates lists the .msh files and converted directories of the layers.
// Names that are not local to the work directory are left out.
func (d *Driver) Intermediates(layers []string) []string {
	var paths []string
	for _, geo := range layers {
		if filepath.IsLocal(geo) {
			paths = append(paths, filepath.Join(d.workDir, geo+".msh"))
		}
	}
	for _, geo := range layers {
		if filepath.IsLocal(geo) {
			paths = append(paths, filepath.Join(d.workDir, geo))
		}
	}
	return paths
}

// gmsh 参数变量，.geo 文件中可直接引用
func (d *Driver) geometryArgs(i int) []string {
	g := d.p.Geometry
	thgem := 0.0
	if d.p.Type[i] == model.LayerTHGEM {
		thgem = 1
	}
	vars := []struct {
		name  string
		value float64
	}{
		{"RADIUS", g.Radius},
		{"INTERIOR_RADIUS", g.InteriorRadius},
		{"DISTANCE_HOLES", g.Pitch},
		{"THICKNESS_DIE", g.ThicknessDielectric},
		{"THICKNESS_PLA", g.ThicknessPlating},
		{"DRIFT", g.Drift},
		{"TRANSFER", g.Transfer},
		{"INDUCTION", g.Induction},
		{"THGEM", thgem},
	}
	var args []string
	for _, v := range vars {
		args = append(args, "-setnumber", v.name, strconv.FormatFloat(v.value, 'g', -1, 64))
	}
	return args
}

// FormatTolerance writes a merge tolerance as ElmerGrid examples do, e.g. 1.0e-8.
func FormatTolerance(tol float64) string {
	s := strconv.FormatFloat(tol, 'e', 1, 64)
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(strings.TrimLeft(exp, "+-"), "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + sign + exp
}
