// Package config loads run parameters from an INI or YAML file. Keys missing
// from the file keep the defaults of the triple-GEM reference setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gemfield/fault"
	"gemfield/model"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "conf/config.ini"

// Default returns the reference triple-GEM parameters.
func Default() model.Params {
	radius := 0.035
	return model.Params{
		Folder:     "triplegem",
		Type:       "ggg",
		Geometries: []string{"testem", "testem1", "testem2"},
		Geometry: model.Geometry{
			Radius:              radius,
			InteriorRadius:      radius * 2 / 7,
			Pitch:               0.140,
			ThicknessDielectric: 0.05,
			ThicknessPlating:    0.005,
			Drift:               3,
			Transfer:            1,
			Induction:           1,
		},
		Field: model.Field{
			Drift:     1000,
			Transfer:  1000,
			Induction: 4000,
			DeltaV:    400,
		},
		PermittivityDielectric: 3.23,
		Mode:                   model.ModeStrict,
		Workers:                1,
		Tools: model.Tools{
			Gmsh:           "gmsh",
			ElmerGrid:      "ElmerGrid",
			ElmerSolver:    "ElmerSolver",
			MergeTolerance: 1.0e-8,
		},
	}
}

// Load reads parameters from path; the format follows the file extension.
func Load(path string) (model.Params, error) {
	var (
		p   model.Params
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = loadYAML(path)
	default:
		p, err = loadINI(path)
	}
	if err != nil {
		return model.Params{}, err
	}
	log.WithFields(log.Fields{
		"path":   path,
		"folder": p.Folder,
		"type":   p.Type,
		"mode":   p.Mode,
	}).Info("读取配置文件")
	return p, nil
}

func loadINI(path string) (model.Params, error) {
	file, err := ini.Load(path)
	if err != nil {
		return model.Params{}, fault.IO("read config", err)
	}
	return loadCfg(file)
}

func loadCfg(file *ini.File) (model.Params, error) {
	d := Default()

	run := file.Section("run")
	geo := file.Section("geometry")
	field := file.Section("field")
	material := file.Section("material")
	tools := file.Section("tools")

	p := model.Params{
		Folder:          run.Key("folder").MustString(d.Folder),
		Type:            run.Key("type").MustString(d.Type),
		Geometries:      d.Geometries,
		Mode:            model.Mode(run.Key("mode").In(string(d.Mode), []string{string(model.ModeStrict), string(model.ModeRelaxed)})),
		Workers:         run.Key("workers").MustInt(d.Workers),
		ForwardGeometry: run.Key("forward_geometry").MustBool(d.ForwardGeometry),
		Geometry: model.Geometry{
			Radius:              geo.Key("radius").MustFloat64(d.Geometry.Radius),
			Pitch:               geo.Key("pitch").MustFloat64(d.Geometry.Pitch),
			ThicknessDielectric: geo.Key("thickness_dielectric").MustFloat64(d.Geometry.ThicknessDielectric),
			ThicknessPlating:    geo.Key("thickness_plating").MustFloat64(d.Geometry.ThicknessPlating),
			Drift:               geo.Key("drift").MustFloat64(d.Geometry.Drift),
			Transfer:            geo.Key("transfer").MustFloat64(d.Geometry.Transfer),
			Induction:           geo.Key("induction").MustFloat64(d.Geometry.Induction),
		},
		Field: model.Field{
			Drift:     field.Key("drift").MustFloat64(d.Field.Drift),
			Transfer:  field.Key("transfer").MustFloat64(d.Field.Transfer),
			Induction: field.Key("induction").MustFloat64(d.Field.Induction),
			DeltaV:    field.Key("delta_v").MustFloat64(d.Field.DeltaV),
		},
		PermittivityDielectric: material.Key("permittivity_dielectric").MustFloat64(d.PermittivityDielectric),
		Tools: model.Tools{
			Gmsh:           tools.Key("gmsh").MustString(d.Tools.Gmsh),
			ElmerGrid:      tools.Key("elmergrid").MustString(d.Tools.ElmerGrid),
			ElmerSolver:    tools.Key("elmersolver").MustString(d.Tools.ElmerSolver),
			MergeTolerance: tools.Key("merge_tolerance").MustFloat64(d.Tools.MergeTolerance),
			Timeout:        tools.Key("timeout").MustDuration(d.Tools.Timeout),
		},
	}

	if run.HasKey("geometries") {
		p.Geometries = run.Key("geometries").Strings(",")
	}
	// 内径默认为孔半径的 2/7
	p.Geometry.InteriorRadius = geo.Key("interior_radius").MustFloat64(p.Geometry.Radius * 2 / 7)

	if field.HasKey("potentials") && strings.TrimSpace(field.Key("potentials").String()) != "" {
		pots, err := field.Key("potentials").StrictFloat64s(",")
		if err != nil {
			return model.Params{}, fault.Invalid("field.potentials", "%v", err)
		}
		p.Field.Potentials = pots
	}
	return p, nil
}

func loadYAML(path string) (model.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Params{}, fault.IO("read config", err)
	}
	p := Default()
	p.Geometry.InteriorRadius = 0
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.Params{}, fault.Invalid("parse config", "%v", err)
	}
	if p.Geometry.InteriorRadius == 0 {
		p.Geometry.InteriorRadius = p.Geometry.Radius * 2 / 7
	}
	if p.Mode == "" {
		p.Mode = model.ModeStrict
	}
	return p, nil
}

// Validate reports every inconsistency of p at once. Folder and tool names are
// always required; the physical checks are skipped for relaxed runs.
func Validate(p model.Params) error {
	var problems []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(p.Folder != "", "output folder is empty")
	// 输出目录与几何名都在工作目录下拼接，清理时会被删除
	check(p.Folder == "" || filepath.IsLocal(p.Folder), "output folder %q is not a local path", p.Folder)
	for _, geo := range p.Geometries {
		check(filepath.IsLocal(geo), "geometry %q is not a local path", geo)
	}
	check(p.Tools.Gmsh != "" && p.Tools.ElmerGrid != "" && p.Tools.ElmerSolver != "", "tool names must not be empty")
	check(p.Mode == model.ModeStrict || p.Mode == model.ModeRelaxed, "unknown mode %q", p.Mode)

	if p.Strict() {
		check(p.NTOT() > 0, "layer type is empty")
		for i, c := range p.Type {
			check(c == model.LayerGEM || c == model.LayerTHGEM, "layer %d has unknown type %q", i+1, c)
		}
		check(len(p.Geometries) == p.NTOT(), "type %q has %d layers but %d geometries are listed", p.Type, p.NTOT(), len(p.Geometries))
		check(p.Geometry.Drift > 0 && p.Geometry.Transfer > 0 && p.Geometry.Induction > 0, "gap lengths must be positive")
		check(p.PermittivityDielectric > 0, "dielectric permittivity must be positive, got %v", p.PermittivityDielectric)
		check(p.Workers >= 1, "workers must be at least 1, got %d", p.Workers)
		check(p.Tools.MergeTolerance > 0, "merge tolerance must be positive")
		if n := len(p.Field.Potentials); n > 0 {
			check(n == p.BoundaryCount(), "got %d potentials for %d layers, want %d", n, p.NTOT(), p.BoundaryCount())
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fault.New(fault.InvalidParameter, "validate parameters", errors.Join(problems...))
}
