package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(dir string, n int) []Record {
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, Record{
			LauncherPath: filepath.Join(dir, fmt.Sprintf("Generator_%d.json", i)),
			EntryPoint:   fmt.Sprintf("backend.Generator_%d", i),
			PackageName:  fmt.Sprintf("com.example.api%d", i),
		})
	}
	return records
}

func TestRegistry_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d records", n), func(t *testing.T) {
			want := sampleRecords(dir, n)

			require.NoError(t, reg.Write("generators", want))

			got, found, err := reg.Read("generators")
			require.NoError(t, err)
			require.True(t, found)
			require.Len(t, got, n)

			if n > 0 {
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("records mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestRegistry_FileFormat(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	err := reg.Write("generators", []Record{
		{LauncherPath: "/mod/launchers/Generator_0.json", EntryPoint: "mod.Generator_0", PackageName: "api"},
		{LauncherPath: "/mod/launchers/Generator_1.json", EntryPoint: "mod.Generator_1", PackageName: "admin"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "generators.metadata"))
	require.NoError(t, err)

	assert.Equal(t,
		"/mod/launchers/Generator_0.json#mod.Generator_0#api\n"+
			"/mod/launchers/Generator_1.json#mod.Generator_1#admin\n",
		string(content))
}

func TestRegistry_ReadMissing(t *testing.T) {
	reg := NewRegistry(t.TempDir())

	records, found, err := reg.Read("generators")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, records)
}

func TestRegistry_ReadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"too few fields", "/a/b.json#entry\n", 1},
		{"too many fields", "/a/b.json#entry#pkg#extra\n", 1},
		{"second line broken", "/a/b.json#entry#pkg\nbroken\n", 2},
		{"empty entry point", "/a/b.json##pkg\n", 1},
		{"empty package name", "/a/b.json#entry#\n", 1},
		{"empty launcher path", "#entry#pkg\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			reg := NewRegistry(dir)
			require.NoError(t, os.WriteFile(reg.Path("generators"), []byte(tt.content), 0o644))

			_, found, err := reg.Read("generators")
			require.Error(t, err)
			assert.True(t, found)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestRegistry_ReadSkipsBlankLinesAndCRLF(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)
	content := "/a/Generator_0.json#m.Generator_0#api\r\n\r\n/a/Generator_1.json#m.Generator_1#admin\r\n"
	require.NoError(t, os.WriteFile(reg.Path("generators"), []byte(content), 0o644))

	records, found, err := reg.Read("generators")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, records, 2)
	assert.Equal(t, "api", records[0].PackageName)
	assert.Equal(t, "admin", records[1].PackageName)
}

func TestRegistry_WriteRejectsDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		field  string
	}{
		{"hash in path", Record{"/a#b/Generator_0.json", "m.Generator_0", "api"}, "launcher path"},
		{"hash in entry point", Record{"/a/Generator_0.json", "m#Generator_0", "api"}, "entry point"},
		{"hash in package", Record{"/a/Generator_0.json", "m.Generator_0", "a#pi"}, "package name"},
		{"newline in package", Record{"/a/Generator_0.json", "m.Generator_0", "a\npi"}, "package name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			reg := NewRegistry(dir)

			err := reg.Write("generators", []Record{tt.record})
			require.Error(t, err)

			var derr *DelimiterError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.field, derr.Field)
			assert.NoFileExists(t, reg.Path("generators"), "nothing is written on a fatal record")
		})
	}
}

func TestRegistry_WriteRejectsEmptyField(t *testing.T) {
	reg := NewRegistry(t.TempDir())

	err := reg.Write("generators", []Record{{LauncherPath: "/a/Generator_0.json", EntryPoint: "m.Generator_0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty package name")
}

func TestRegistry_Consume(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Write("generators", sampleRecords(dir, 2)))
	assert.FileExists(t, reg.Path("generators"))

	require.NoError(t, reg.Consume("generators"))
	assert.NoFileExists(t, reg.Path("generators"))

	_, found, err := reg.Read("generators")
	require.NoError(t, err)
	assert.False(t, found)

	// consuming twice is harmless
	require.NoError(t, reg.Consume("generators"))
}

func TestRegistry_WriteReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Write("generators", sampleRecords(dir, 3)))
	require.NoError(t, reg.Write("generators", sampleRecords(dir, 1)))

	records, _, err := reg.Read("generators")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}
