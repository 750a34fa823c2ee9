package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/stretchr/testify/require"

	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/runtime"
	"github.com/jcorbin/runevm/source"
)

// TestGolden drives every testdata/*.txtar fixture through the same
// compileScript+runtime.VM path main's CLI uses, comparing main()'s final
// returned value against the fixture's "want" section.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files, "expected at least one golden fixture")

	for _, path := range files {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			arc, err := txtar.ParseFile(path)
			require.NoError(t, err)

			script := txtarFile(t, arc, "script")
			want := strings.TrimSpace(string(txtarFile(t, arc, "want")))

			var srcs source.Sources
			sourceID := srcs.Insert(path, script)

			unit, err := compileScript(script, sourceID)
			require.NoError(t, err)

			vm := runtime.New(unit)
			entry := item.GlobalFn(item.Path{item.Named("main")}, item.EMPTY)
			result, err := vm.Run(context.Background(), entry)
			require.NoError(t, err)
			require.Equal(t, want, result.String())
		})
	}
}

func txtarFile(t *testing.T, arc *txtar.Archive, name string) []byte {
	t.Helper()
	for _, f := range arc.Files {
		if f.Name == name {
			return f.Data
		}
	}
	t.Fatalf("fixture missing %q section", name)
	return nil
}
