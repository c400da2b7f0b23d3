package model

import "time"

// Params is the complete, read-only description of one generator run.
// Every stage receives it explicitly.
type Params struct {
	Folder     string   `json:"folder" yaml:"folder"`
	Type       string   `json:"type" yaml:"type"`
	Geometries []string `json:"geometries" yaml:"geometries"`

	Geometry Geometry `json:"geometry" yaml:"geometry"`
	Field    Field    `json:"field" yaml:"field"`

	PermittivityDielectric float64 `json:"permittivity_dielectric" yaml:"permittivity_dielectric"`

	Mode            Mode  `json:"mode" yaml:"mode"`
	Workers         int   `json:"workers" yaml:"workers"`
	ForwardGeometry bool  `json:"forward_geometry" yaml:"forward_geometry"`
	Tools           Tools `json:"tools" yaml:"tools"`
}

// 几何参数，单位 mm
type Geometry struct {
	Radius              float64 `json:"radius" yaml:"radius"`
	InteriorRadius      float64 `json:"interior_radius" yaml:"interior_radius"`
	Pitch               float64 `json:"pitch" yaml:"pitch"`
	ThicknessDielectric float64 `json:"thickness_dielectric" yaml:"thickness_dielectric"`
	ThicknessPlating    float64 `json:"thickness_plating" yaml:"thickness_plating"`
	Drift               float64 `json:"drift" yaml:"drift"`
	Transfer            float64 `json:"transfer" yaml:"transfer"`
	Induction           float64 `json:"induction" yaml:"induction"`
}

// 电场参数，场强 V/cm，电压 V
type Field struct {
	Drift     float64 `json:"drift" yaml:"drift"`
	Transfer  float64 `json:"transfer" yaml:"transfer"`
	Induction float64 `json:"induction" yaml:"induction"`
	DeltaV    float64 `json:"delta_v" yaml:"delta_v"`
	// explicit potentials from drift cathode to readout; replaces the derivation
	Potentials []float64 `json:"potentials" yaml:"potentials"`
}

// 外部工具配置
type Tools struct {
	Gmsh           string        `json:"gmsh" yaml:"gmsh"`
	ElmerGrid      string        `json:"elmergrid" yaml:"elmergrid"`
	ElmerSolver    string        `json:"elmersolver" yaml:"elmersolver"`
	MergeTolerance float64       `json:"merge_tolerance" yaml:"merge_tolerance"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
}

// NTOT is the number of amplification layers.
func (p Params) NTOT() int {
	return len(p.Type)
}

// BoundaryCount is the number of boundaries carrying a potential.
func (p Params) BoundaryCount() int {
	return 2*p.NTOT() + 2
}

func (p Params) Strict() bool {
	return p.Mode != ModeRelaxed
}

// Layers returns the geometry names that will actually be meshed.
func (p Params) Layers() []string {
	n := p.NTOT()
	if n > len(p.Geometries) {
		n = len(p.Geometries)
	}
	return p.Geometries[:n]
}

// Clone returns a deep copy so callers can patch parameters safely.
func (p Params) Clone() Params {
	c := p
	c.Geometries = append([]string(nil), p.Geometries...)
	if p.Field.Potentials != nil {
		c.Field.Potentials = append([]float64(nil), p.Field.Potentials...)
	}
	return c
}

// 前后端通信消息结构
type Msg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

const (
	MsgEnv      = "env"
	MsgEnvSet   = "envSet"
	MsgStart    = "start"
	MsgStep     = "step"
	MsgFinished = "finished"
	MsgFailed   = "failed"
	MsgStop     = "stop"
	MsgStopped  = "stopped"
	MsgError    = "error"
)
