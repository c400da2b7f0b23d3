package sif

import (
	"path/filepath"
	"strconv"

	"gemfield/fault"
	"gemfield/fsutil"
	"gemfield/model"
	"gemfield/potential"

	log "github.com/sirupsen/logrus"
)

// Variant selects which of the two solver inputs is generated.
type Variant struct {
	File      string
	Result    string
	Post      string
	Weighting bool
}

var (
	// Primary carries the physical potentials.
	Primary = Variant{File: "gem.sif", Result: "gem.result", Post: "gem.ep"}
	// Weighting puts 1 V on the readout and 0 V on every other boundary.
	Weighting = Variant{File: "gemWT.sif", Result: "gemWT.result", Post: "gemWT.ep", Weighting: true}
)

// Variants lists the inputs in the order they are written and solved.
var Variants = []Variant{Primary, Weighting}

// Build assembles the solver input for one variant.
func Build(p model.Params, pots []float64, v Variant) Document {
	var d Document
	d.Add(NewSection("Header").
		Directive("CHECK KEYWORDS", "Warn").
		Directive("Mesh DB", `"." "."`).
		Directive("Include Path", `""`).
		Directive("Results Directory", `""`))
	d.Add(NewSection("Simulation").
		Set("Coordinate System", "Cartesian 3D").
		Set("Simulation Type", "Steady State").
		Set("Steady State Max Iterations", "1").
		Set("Output File", quote(v.Result)).
		Set("Post File", quote(v.Post)))

	body(&d, p)

	derived := len(p.Field.Potentials) == 0
	for i, pot := range pots {
		bc := strconv.Itoa(model.BoundaryBase + i)
		value := FormatReal(pot)
		switch {
		case v.Weighting:
			value = strconv.Itoa(potential.Weighting(i, len(pots)))
		case derived && i == len(pots)-1:
			// 推导序列的读出极是整数起点 0
			value = "0"
		}
		s := NewSection("Boundary Condition "+bc).
			WithIndent(potentialIndent).
			Set("Target Boundaries", bc).
			Set("Potential", value)
		if i == 0 {
			s.WithComment("Potential definitions", 1)
		}
		d.Add(s)
	}
	return d
}

// potential stanzas have always been indented deeper than the rest of the file
const potentialIndent = "    "

// body is shared verbatim by both variants.
func body(d *Document, p model.Params) {
	d.Add(NewSection("Constants").Join().
		Set("Permittivity Of Vacuum", "8.8542e-12"))

	// 气体、介质、上下电极
	for i, material := range []int{1, 2, 3, 3} {
		d.Add(NewSection("Body "+strconv.Itoa(i+1)).
			Set("Equation", "1").
			Set("Material", strconv.Itoa(material)))
	}

	d.Add(NewSection("Solver 1").
		Set("Equation", "Stat Elec Solver").
		Set("Variable", "Potential").
		Set("Variable DOFs", "1").
		Set("Procedure", `"StatElecSolve" "StatElecSolver"`).
		Set("Calculate Electric Field", "True").
		Set("Calculate Electric Flux", "False").
		Set("Linear System Solver", "Iterative").
		Set("Linear System Iterative Method", "BiCGStab").
		Set("Linear System Max Iterations", "1000").
		Set("Linear System Abort Not Converged", "True").
		Set("Linear System Convergence Tolerance", "1.0e-10").
		Set("Linear System Preconditioning", "ILU1").
		Set("Steady State Convergence Tolerance", "5.0e-7"))

	d.Add(NewSection("Material 1").WithComment("Gas", 0).
		Set("Relative Permittivity", "1"))
	d.Add(NewSection("Material 2").WithComment("Dielectric", 0).
		Set("Relative Permittivity", FormatReal(p.PermittivityDielectric)))
	d.Add(NewSection("Material 3").WithComment("Copper", 0).
		Set("Relative Permittivity", "1.0e10"))

	periodic(d, "X", 1, 1, 3)
	periodic(d, "Y", 3, 2, 4)
}

// periodic pairs boundary a with boundary b, rotated half a turn about z.
func periodic(d *Document, axis string, first, a, b int) {
	d.Add(NewSection("Boundary Condition "+strconv.Itoa(first)).
		WithComment("Periodicity in "+axis, 1).
		Set("Target Boundaries", strconv.Itoa(a)))
	d.Add(NewSection("Boundary Condition "+strconv.Itoa(first+1)).
		Set("Target Boundaries", strconv.Itoa(b)).
		Set("Periodic BC", strconv.Itoa(first)).
		Set("Periodic BC Rotate(3)", "Real 0 0 180"))
}

// Write renders both variants into dir and returns the written paths.
func Write(dir string, p model.Params, pots []float64) ([]string, error) {
	var paths []string
	for _, v := range Variants {
		name := filepath.Join(dir, v.File)
		doc := Build(p, pots, v)
		if err := fsutil.WriteFileAtomic(name, []byte(doc.Render()), 0o644); err != nil {
			return paths, fault.IO("write "+v.File, err)
		}
		log.WithFields(log.Fields{
			"file":       name,
			"boundaries": len(pots),
			"weighting":  v.Weighting,
		}).Info("写入 sif 文件")
		paths = append(paths, name)
	}
	return paths, nil
}
