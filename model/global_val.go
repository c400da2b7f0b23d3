package model

// 单位约定
// 1. 几何尺寸 mm
// 2. 电场强度 V/cm
// 3. 电势 V
// 4. 相对介电常数 无量纲

const (
	// lengths are given in mm, fields in V/cm
	MMPerCM = 10

	// first boundary index that carries a potential; 1..4 are the periodic pairs
	BoundaryBase = 5

	// gas, dielectric, two conductors
	MaterialCount = 4

	LayerGEM   = 'g'
	LayerTHGEM = 't'
)

// Mode controls how strictly parameters and tool results are checked.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeRelaxed Mode = "relaxed"
)
