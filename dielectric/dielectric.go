// Package dielectric writes the material permittivity table read by the
// field and tracking tool after the solve.
package dielectric

import (
	"fmt"
	"path/filepath"
	"strings"

	"gemfield/fault"
	"gemfield/fsutil"
	"gemfield/model"
	"gemfield/sif"

	log "github.com/sirupsen/logrus"
)

const FileName = "dielectrics.dat"

// Render returns the table: the material count, then "<index> <permittivity>"
// per material. Materials 1 (gas), 3 and 4 (conductors) are fixed.
func Render(permittivity float64) string {
	lines := []string{
		fmt.Sprint(model.MaterialCount),
		"1 1",
		"2 " + sif.FormatReal(permittivity),
		"3 1e10",
		"4 1e10",
	}
	return strings.Join(lines, "\n")
}

func Validate(p model.Params) error {
	if p.Strict() && !(p.PermittivityDielectric > 0) {
		return fault.Invalid("permittivity", "dielectric permittivity must be positive, got %v", p.PermittivityDielectric)
	}
	return nil
}

// Write stores the table in dir and returns its path.
func Write(dir string, p model.Params) (string, error) {
	if err := Validate(p); err != nil {
		return "", err
	}
	name := filepath.Join(dir, FileName)
	if err := fsutil.WriteFileAtomic(name, []byte(Render(p.PermittivityDielectric)), 0o644); err != nil {
		return "", fault.IO("write "+FileName, err)
	}
	log.WithFields(log.Fields{
		"file":         name,
		"permittivity": p.PermittivityDielectric,
	}).Info("写入介电常数表")
	return name, nil
}
