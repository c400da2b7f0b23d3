package sif

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"gemfield/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tripleGEMPotentials = []float64{-2100, -1800, -1400, -1300, -900, -800, -400, 0}

func params() model.Params {
	return model.Params{Type: "ggg", PermittivityDielectric: 3.23}
}

func TestBuildPrimaryGolden(t *testing.T) {
	want, err := os.ReadFile(filepath.Join("testdata", "gem.sif.golden"))
	require.NoError(t, err)

	got := Build(params(), tripleGEMPotentials, Primary).Render()
	assert.Equal(t, string(want), got)
}

func TestVariantsDifferOnlyInNamesAndPotentials(t *testing.T) {
	primary := strings.Split(Build(params(), tripleGEMPotentials, Primary).Render(), "\n")
	weighting := strings.Split(Build(params(), tripleGEMPotentials, Weighting).Render(), "\n")
	require.Equal(t, len(primary), len(weighting))

	for i := range primary {
		if primary[i] == weighting[i] {
			continue
		}
		line := strings.TrimSpace(primary[i])
		ok := strings.HasPrefix(line, "Output File =") ||
			strings.HasPrefix(line, "Post File =") ||
			strings.HasPrefix(line, "Potential =")
		assert.True(t, ok, "unexpected difference on line %d: %q vs %q", i+1, primary[i], weighting[i])
	}
}

func TestWeightingPotentials(t *testing.T) {
	doc := Build(params(), tripleGEMPotentials, Weighting)

	sim, ok := doc.Find("Simulation")
	require.True(t, ok)
	out, _ := sim.Value("Output File")
	post, _ := sim.Value("Post File")
	assert.Equal(t, `"gemWT.result"`, out)
	assert.Equal(t, `"gemWT.ep"`, post)

	for i := range tripleGEMPotentials {
		s, ok := doc.Find("Boundary Condition " + strconv.Itoa(5+i))
		require.True(t, ok)
		v, _ := s.Value("Potential")
		want := "0"
		if i == len(tripleGEMPotentials)-1 {
			want = "1"
		}
		assert.Equal(t, want, v, "boundary %d", 5+i)
	}
}

func TestWeightingSingleBoundary(t *testing.T) {
	var doc Document
	require.NotPanics(t, func() {
		doc = Build(params(), []float64{-500}, Weighting)
	})
	s, ok := doc.Find("Boundary Condition 5")
	require.True(t, ok)
	v, _ := s.Value("Potential")
	assert.Equal(t, "0", v)
}

func TestBoundaryStanzas(t *testing.T) {
	text := Build(params(), tripleGEMPotentials, Primary).Render()
	re := regexp.MustCompile(`(?m)^Boundary Condition (\d+)\n    Target Boundaries = (\d+)\n    Potential = `)
	matches := re.FindAllStringSubmatch(text, -1)
	require.Len(t, matches, 8)
	for i, m := range matches {
		assert.Equal(t, strconv.Itoa(5+i), m[1])
		assert.Equal(t, m[1], m[2])
	}
}

func TestPermittivityInMaterial2(t *testing.T) {
	cases := map[float64]string{
		4.5:     "4.5",
		4:       "4.0",
		1234567: "1234567.0",
	}
	for eps, want := range cases {
		p := params()
		p.PermittivityDielectric = eps
		s, ok := Build(p, tripleGEMPotentials, Primary).Find("Material 2")
		require.True(t, ok)
		v, _ := s.Value("Relative Permittivity")
		assert.Equal(t, want, v, "%v", eps)
	}
}

func TestReadoutPotential(t *testing.T) {
	readout := func(p model.Params) string {
		s, ok := Build(p, tripleGEMPotentials, Primary).Find("Boundary Condition 12")
		require.True(t, ok)
		v, _ := s.Value("Potential")
		return v
	}
	assert.Equal(t, "0", readout(params()))

	p := params()
	p.Field.Potentials = tripleGEMPotentials
	assert.Equal(t, "0.0", readout(p))
}

func TestRenderJoinAndIndent(t *testing.T) {
	var d Document
	d.Add(NewSection("A").Set("x", "1"))
	d.Add(NewSection("B").Join().Set("y", "2"))
	d.Add(NewSection("C").WithIndent("    ").WithComment("c", 1).Directive("z", "3"))
	assert.Equal(t, "A\n  x = 1\nEnd\nB\n  y = 2\nEnd\n\n\n! c\nC\n    z 3\nEnd\n", d.Render())
}

func TestFormatReal(t *testing.T) {
	cases := map[float64]string{
		0:       "0.0",
		-400:    "-400.0",
		-1300.5: "-1300.5",
		1e-5:    "1e-05",
		2e16:    "2e+16",
		-0.25:   "-0.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatReal(in), "%v", in)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(dir, params(), tripleGEMPotentials)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "gem.sif"), filepath.Join(dir, "gemWT.sif")}, paths)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, 8, strings.Count(string(data), "  Potential = "))
	}
}

func TestWriteMissingDir(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "missing"), params(), tripleGEMPotentials)
	assert.Error(t, err)
}
