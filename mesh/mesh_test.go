package mesh

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gemfield/fault"
	"gemfield/model"
	"gemfield/runner"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params() model.Params {
	return model.Params{
		Folder:     "triplegem",
		Type:       "ggg",
		Geometries: []string{"testem", "testem1", "testem2"},
		Workers:    1,
		Tools: model.Tools{
			Gmsh:           "gmsh",
			ElmerGrid:      "ElmerGrid",
			ElmerSolver:    "ElmerSolver",
			MergeTolerance: 1e-8,
		},
	}
}

// seed creates the files gmsh and ElmerGrid would leave behind.
func seed(t *testing.T, dir string, layers []string) {
	t.Helper()
	for _, geo := range layers {
		require.NoError(t, os.WriteFile(filepath.Join(dir, geo+".msh"), []byte("$MeshFormat"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, geo), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, geo, "mesh.header"), []byte("1 1 1"), 0o644))
	}
}

func TestRunCommandSequence(t *testing.T) {
	dir := t.TempDir()
	p := params()
	seed(t, dir, p.Geometries)
	fake := &runner.Fake{}

	out, err := NewDriver(fake, p, dir).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "triplegem"), out)

	assert.Equal(t, []string{
		"gmsh testem.geo -3 -order 2 -optimize",
		"ElmerGrid 14 2 testem.msh",
		"gmsh testem1.geo -3 -order 2 -optimize",
		"ElmerGrid 14 2 testem1.msh",
		"gmsh testem2.geo -3 -order 2 -optimize",
		"ElmerGrid 14 2 testem2.msh",
		"ElmerGrid 2 2 testem -in testem1 -in testem2 -unite -out triplegem -merge 1.0e-8 -autoclean",
		"ElmerGrid 2 2 triplegem -centralize",
	}, fake.Lines())

	for _, c := range fake.Commands {
		assert.Equal(t, dir, c.Dir)
	}
	for _, geo := range p.Geometries {
		assert.NoFileExists(t, filepath.Join(dir, geo+".msh"))
		assert.NoDirExists(t, filepath.Join(dir, geo))
	}
}

func TestRunSingleLayerUnite(t *testing.T) {
	p := params()
	p.Type = "t"
	p.Geometries = []string{"thgem"}
	fake := &runner.Fake{}

	_, err := NewDriver(fake, p, t.TempDir()).Run(context.Background())
	require.NoError(t, err)
	lines := fake.Lines()
	assert.Equal(t, "ElmerGrid 2 2 thgem -unite -out triplegem -merge 1.0e-8 -autoclean", lines[len(lines)-2])
}

func TestRunParallelLayers(t *testing.T) {
	dir := t.TempDir()
	p := params()
	p.Workers = 3
	seed(t, dir, p.Geometries)
	fake := &runner.Fake{}

	_, err := NewDriver(fake, p, dir).Run(context.Background())
	require.NoError(t, err)

	lines := fake.Lines()
	require.Len(t, lines, 8)
	layerLines := append([]string(nil), lines[:6]...)
	sort.Strings(layerLines)
	assert.Equal(t, []string{
		"ElmerGrid 14 2 testem.msh",
		"ElmerGrid 14 2 testem1.msh",
		"ElmerGrid 14 2 testem2.msh",
		"gmsh testem.geo -3 -order 2 -optimize",
		"gmsh testem1.geo -3 -order 2 -optimize",
		"gmsh testem2.geo -3 -order 2 -optimize",
	}, layerLines)
	assert.True(t, strings.Contains(lines[6], "-unite"))
	assert.True(t, strings.Contains(lines[7], "-centralize"))
}

func TestStrictFailureKeepsIntermediates(t *testing.T) {
	dir := t.TempDir()
	p := params()
	seed(t, dir, p.Geometries)
	fake := &runner.Fake{Fail: func(c runner.Command) bool {
		return c.Program == "gmsh" && c.Args[0] == "testem1.geo"
	}}

	_, err := NewDriver(fake, p, dir).Run(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ExternalToolFailure))
	for _, l := range fake.Lines() {
		assert.NotContains(t, l, "-unite")
	}
	assert.FileExists(t, filepath.Join(dir, "testem.msh"))
	assert.DirExists(t, filepath.Join(dir, "testem2"))
}

func TestRelaxedFailureContinues(t *testing.T) {
	dir := t.TempDir()
	p := params()
	p.Mode = model.ModeRelaxed
	seed(t, dir, p.Geometries)
	fake := &runner.Fake{Fail: func(c runner.Command) bool { return c.Program == "gmsh" }}

	_, err := NewDriver(fake, p, dir).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, fake.Lines(), 8)
	assert.NoFileExists(t, filepath.Join(dir, "testem.msh"))
}

func TestLayerMismatch(t *testing.T) {
	p := params()
	p.Type = "gggg"

	_, err := NewDriver(&runner.Fake{}, p, t.TempDir()).Layers()
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.InvalidParameter))

	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)
	p.Mode = model.ModeRelaxed
	layers, err := NewDriver(&runner.Fake{}, p, t.TempDir()).Layers()
	require.NoError(t, err)
	assert.Equal(t, []string{"testem", "testem1", "testem2"}, layers)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "层数与几何文件数不一致，只处理前 3 层", hook.LastEntry().Message)

	p.Type = "gg"
	layers, err = NewDriver(&runner.Fake{}, p, t.TempDir()).Layers()
	require.NoError(t, err)
	assert.Equal(t, []string{"testem", "testem1"}, layers)
}

func TestRunRefusesPathsOutsideWorkDir(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "work")
	victim := filepath.Join(root, "victim")
	require.NoError(t, os.MkdirAll(work, 0o755))
	require.NoError(t, os.MkdirAll(victim, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(victim, "precious.txt"), []byte("keep"), 0o644))

	cases := map[string]func(p *model.Params){
		"parent geometry":   func(p *model.Params) { p.Geometries = []string{"testem", "../victim", "testem2"} },
		"absolute geometry": func(p *model.Params) { p.Geometries = []string{victim, "testem1", "testem2"} },
		"parent folder":     func(p *model.Params) { p.Folder = "../victim" },
	}
	for name, mutate := range cases {
		for _, mode := range []model.Mode{model.ModeStrict, model.ModeRelaxed} {
			p := params()
			p.Mode = mode
			mutate(&p)
			fake := &runner.Fake{}

			_, err := NewDriver(fake, p, work).Run(context.Background())
			require.Error(t, err, "%s/%s", name, mode)
			assert.True(t, fault.Is(err, fault.InvalidParameter), "%s/%s", name, mode)
			assert.Empty(t, fake.Commands, "%s/%s", name, mode)
			assert.FileExists(t, filepath.Join(victim, "precious.txt"), "%s/%s", name, mode)
		}
	}
}

func TestIntermediatesStayInWorkDir(t *testing.T) {
	dir := t.TempDir()
	paths := NewDriver(&runner.Fake{}, params(), dir).Intermediates([]string{"testem", "../victim", "/abs"})
	assert.Equal(t, []string{filepath.Join(dir, "testem.msh"), filepath.Join(dir, "testem")}, paths)
}

func TestForwardGeometry(t *testing.T) {
	p := params()
	p.Type = "gtg"
	p.ForwardGeometry = true
	p.Geometry = model.Geometry{Radius: 0.035, Pitch: 0.14, Drift: 3}

	cmds := NewDriver(&runner.Fake{}, p, ".").LayerCommands(1, "testem1")
	args := strings.Join(cmds[0].Args, " ")
	assert.Contains(t, args, "-setnumber RADIUS 0.035")
	assert.Contains(t, args, "-setnumber DISTANCE_HOLES 0.14")
	assert.Contains(t, args, "-setnumber DRIFT 3")
	assert.Contains(t, args, "-setnumber THGEM 1")
}

func TestFormatTolerance(t *testing.T) {
	assert.Equal(t, "1.0e-8", FormatTolerance(1e-8))
	assert.Equal(t, "2.5e-10", FormatTolerance(2.5e-10))
	assert.Equal(t, "1.0e0", FormatTolerance(1))
}
