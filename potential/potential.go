// Package potential derives the boundary potentials of a GEM stack.
//
// Boundaries are ordered from the drift cathode (index 0) to the readout
// plane (last index). With NTOT layers there are 2*NTOT+2 of them: the
// cathode, the top and bottom electrode of every layer, and the readout.
package potential

import (
	"gemfield/deque"
	"gemfield/fault"
	"gemfield/model"

	log "github.com/sirupsen/logrus"
)

// Calculate returns the potential of every boundary. A non-empty override in
// p.Field.Potentials is returned as is, without any derivation.
func Calculate(p model.Params) []float64 {
	if len(p.Field.Potentials) > 0 {
		log.WithFields(log.Fields{
			"count": len(p.Field.Potentials),
		}).Info("使用给定电势")
		return append([]float64(nil), p.Field.Potentials...)
	}
	return derive(p)
}

// 从读出端开始逐级减去电压，AddFirst 保证结果从漂移端开始
func derive(p model.Params) []float64 {
	f, g := p.Field, p.Geometry
	n := p.NTOT()
	d := deque.NewArrDeque(2*n + 2)

	v := 0.0
	d.AddFirst(v)
	v -= f.Induction * g.Induction / model.MMPerCM
	d.AddFirst(v)
	for i := 0; i < n-1; i++ {
		v -= f.DeltaV
		d.AddFirst(v)
		v -= f.Transfer * g.Transfer / model.MMPerCM
		d.AddFirst(v)
	}
	v -= f.DeltaV
	d.AddFirst(v)
	v -= f.Drift * g.Drift / model.MMPerCM
	d.AddFirst(v)

	log.WithFields(log.Fields{
		"layers":   n,
		"cathode":  d.First(),
		"readout":  d.Last(),
		"boundary": d.Size(),
	}).Info("计算电势")
	return d.Slice()
}

// Weighting is the weighting-field potential of boundary i out of k: 1 on the
// readout boundary and 0 everywhere else. k <= 1 yields 0.
func Weighting(i, k int) int {
	if k <= 1 {
		return 0
	}
	return i / (k - 1)
}

// Validate checks a potential sequence against the layer count. Relaxed runs
// accept any sequence.
func Validate(p model.Params, pots []float64) error {
	if !p.Strict() {
		return nil
	}
	if want := p.BoundaryCount(); len(pots) != want {
		return fault.Invalid("potentials", "got %d values for %d layers, want %d", len(pots), p.NTOT(), want)
	}
	return nil
}
