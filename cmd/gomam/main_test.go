package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const points = `[0, 0]
[1, 0]
[0, 1]
[5, 5]
[6, 5]
[10, 10]
`

func TestCLI_Backends(t *testing.T) {
	for _, tc := range []struct {
		backend string
		kind    string
	}{
		{"disk", "mm"},
		{"disk", "gh"},
		{"memory", "vp"},
		{"multiple", "dummy"},
		{"pebble", "mm"},
	} {
		t.Run(tc.backend+"/"+tc.kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "idx")
			common := []string{"--backend", tc.backend, "--path", path, "--kind", tc.kind, "--page-size", "256", "--json"}

			out, err := run(t, points, append([]string{"build"}, common...)...)
			require.NoError(t, err, out)
			var built buildOutput
			require.NoError(t, json.Unmarshal([]byte(out), &built))
			assert.Equal(t, 6, built.Added)
			assert.Equal(t, 6, built.Objects)

			out, err = run(t, "", append([]string{"knn", "--sample", "0.1,0.1", "-k", "3"}, common...)...)
			require.NoError(t, err, out)
			var knn queryOutput
			require.NoError(t, json.Unmarshal([]byte(out), &knn))
			require.Len(t, knn.Results, 3)
			assert.Equal(t, []float64{0, 0}, knn.Results[0].Vector)
			assert.Positive(t, knn.Distances)

			out, err = run(t, "", append([]string{"range", "--sample", "5,5", "--radius", "1"}, common...)...)
			require.NoError(t, err, out)
			var rng queryOutput
			require.NoError(t, json.Unmarshal([]byte(out), &rng))
			assert.Len(t, rng.Results, 2)

			out, err = run(t, "", append([]string{"stats"}, common...)...)
			require.NoError(t, err, out)
			var st statsOutput
			require.NoError(t, json.Unmarshal([]byte(out), &st))
			assert.Equal(t, 6, st.Objects)
			assert.Equal(t, tc.kind, st.Kind)
		})
	}
}

func TestCLI_UnsupportedQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	common := []string{"--path", path, "--kind", "gh"}
	_, err := run(t, points, append([]string{"build"}, common...)...)
	require.NoError(t, err)

	_, err = run(t, "", append([]string{"query", "--type", "ring", "--sample", "0,0", "--inner", "1", "--radius", "2"}, common...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gh trees do not answer ring queries")

	out, err := run(t, "", append([]string{"query", "--type", "point", "--sample", "5,5"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "1 results")
}

func TestCLI_ExportImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	snaps := filepath.Join(dir, "snaps")
	cfgPath := filepath.Join(dir, "gomam.yaml")
	require.NoError(t, writeFile(cfgPath, "compression: lz4\nexport:\n  store: local\n  dir: "+snaps+"\n"))

	_, err := run(t, points, "build", "-c", cfgPath, "--path", src)
	require.NoError(t, err)

	out, err := run(t, "", "export", "-c", cfgPath, "--path", src, "--name", "snap", "--json")
	require.NoError(t, err, out)
	var exported snapshotOutput
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Equal(t, "lz4", exported.Compression)
	assert.Equal(t, "snap.gmsn", exported.Name)
	assert.Positive(t, exported.Pages)

	out, err = run(t, "", "snapshots", "-c", cfgPath, "--json")
	require.NoError(t, err, out)
	var listed []snapshotListing
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "snap.gmsn", listed[0].Name)
	assert.Positive(t, listed[0].Size)

	// Without --name the latest snapshot is restored.
	out, err = run(t, "", "import", "-c", cfgPath, "--path", dst, "--json")
	require.NoError(t, err, out)
	var imported snapshotOutput
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	assert.Equal(t, "snap.gmsn", imported.Name)
	assert.Equal(t, exported.Pages, imported.Pages)

	out, err = run(t, "", "knn", "-c", cfgPath, "--path", dst, "--sample", "10,10", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "10,10")
}

func TestCLI_InvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	_, err := run(t, "[1, 2]\n{\"x\": 1}\n", "build", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector 2")

	_, err = run(t, "", "stats", "--path", path, "--kind", "btree")
	assert.Error(t, err)
}
