// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/invowk/asmconflicts/internal/analysis"
	"github.com/invowk/asmconflicts/internal/config"
	"github.com/invowk/asmconflicts/internal/conflict"
	"github.com/invowk/asmconflicts/internal/refgraph"
	"github.com/invowk/asmconflicts/internal/refpath"
	"github.com/invowk/asmconflicts/internal/report"
	"github.com/invowk/asmconflicts/internal/testutil"
	"github.com/invowk/asmconflicts/internal/testutil/clrmetatest"
	"github.com/invowk/asmconflicts/pkg/assembly"
	"github.com/invowk/asmconflicts/pkg/clrmeta"
)

const (
	// layers and width shape the synthetic application: every assembly of a
	// layer references every assembly of the next one.
	layers = 6
	width  = 8

	sampleConfig = `
system: {
	names: ["mscorlib", "System", "netstandard"]
	prefixes: ["System.", "Microsoft."]
}
resolution: {
	search_dirs: ["lib", "plugins"]
	extensions: [".dll", ".exe", ".winmd"]
	policy: "exact"
}
output: format: "json"
ui: verbose: false
`
)

func name(layer, i int) string {
	return fmt.Sprintf("L%dN%d", layer, i)
}

// layeredCatalog builds a dense layered graph in memory. Odd nodes reference
// version 2.0.0.0 of the next layer and even nodes 1.0.0.0, so every name
// below the first layer conflicts.
func layeredCatalog() (*testutil.Catalog, *assembly.Definition) {
	cat := testutil.NewCatalog()
	ref := func(layer, i, from int) string {
		return fmt.Sprintf("%s, Version=%d.0.0.0", name(layer, i), 1+from%2)
	}

	for l := layers - 1; l >= 1; l-- {
		for i := range width {
			for v := 1; v <= 2; v++ {
				var refs []string
				if l < layers-1 {
					for j := range width {
						refs = append(refs, ref(l+1, j, i))
					}
				}
				cat.Add(fmt.Sprintf("%s, Version=%d.0.0.0", name(l, i), v), refs...)
			}
		}
	}

	rootRefs := make([]string, 0, width)
	for i := range width {
		rootRefs = append(rootRefs, ref(1, i, i))
	}
	return cat, cat.Add("App, Version=1.0.0.0", rootRefs...)
}

// writeApplication writes a small application with a diamond to dir.
func writeApplication(b *testing.B, dir string) string {
	b.Helper()
	id := assembly.MustParseIdentity

	var appRefs []clrmetatest.ImageOption
	for i := range width {
		lib := id(fmt.Sprintf("Lib%d, Version=1.0.0.0", i))
		appRefs = append(appRefs, clrmetatest.WithReference(lib))
		clrmetatest.NewImage(lib,
			clrmetatest.WithReference(id(fmt.Sprintf("Shared, Version=%d.0.0.0", 1+i%2))),
		).MustWriteFile(b, filepath.Join(dir, fmt.Sprintf("Lib%d.dll", i)))
	}
	clrmetatest.NewImage(id("Shared, Version=1.0.0.0")).MustWriteFile(b, filepath.Join(dir, "Shared.dll"))

	app := filepath.Join(dir, "App.exe")
	clrmetatest.NewImage(id("App, Version=1.0.0.0"), appRefs...).MustWriteFile(b, app)
	return app
}

// BenchmarkMetadataRead benchmarks decoding the CLI metadata of a PE image.
func BenchmarkMetadataRead(b *testing.B) {
	id := assembly.MustParseIdentity
	opts := make([]clrmetatest.ImageOption, 0, 64)
	for i := range 64 {
		opts = append(opts, clrmetatest.WithReference(id(fmt.Sprintf("Ref%d, Version=4.0.%d.0, PublicKeyToken=b77a5c561934e089", i, i))))
	}
	data := clrmetatest.NewImage(id("App, Version=1.0.0.0"), opts...).Bytes()
	r := bytes.NewReader(data)

	b.ResetTimer()
	for b.Loop() {
		img, err := clrmeta.Read(r)
		if err != nil {
			b.Fatalf("Read failed: %v", err)
		}
		if len(img.References) != 64 {
			b.Fatalf("got %d references", len(img.References))
		}
	}
}

// BenchmarkConfigLoad benchmarks loading and validating a CUE config file.
func BenchmarkConfigLoad(b *testing.B) {
	file := filepath.Join(b.TempDir(), "config.cue")
	if err := os.WriteFile(file, []byte(sampleConfig), 0o644); err != nil {
		b.Fatalf("failed to write config: %v", err)
	}
	provider := config.NewProvider()
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		if _, _, err := provider.Load(ctx, config.LoadOptions{ConfigFilePath: file}); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

// BenchmarkGraphBuild benchmarks the memoized walk over a dense graph.
func BenchmarkGraphBuild(b *testing.B) {
	cat, root := layeredCatalog()

	b.ResetTimer()
	for b.Loop() {
		g := refgraph.Build(root, cat)
		if g.Len() == 0 {
			b.Fatal("empty graph")
		}
	}
}

// BenchmarkConflictPaths benchmarks detection plus path enumeration for every
// conflicting name.
func BenchmarkConflictPaths(b *testing.B) {
	cat, root := layeredCatalog()
	g := refgraph.Build(root, cat)
	filter := conflict.DefaultSystemFilter()

	b.ResetTimer()
	for b.Loop() {
		groups := conflict.Detect(g.Identities, false, filter)
		if len(groups) != (layers-2)*width {
			b.Fatalf("got %d conflict groups", len(groups))
		}
		for _, grp := range groups {
			if len(refpath.Find(grp.Name, g.Root)) == 0 {
				b.Fatalf("no paths to %s", grp.Name)
			}
		}
	}
}

// BenchmarkAnalysisEndToEnd benchmarks a full run against assemblies on disk,
// including rendering the text report.
func BenchmarkAnalysisEndToEnd(b *testing.B) {
	app := writeApplication(b, b.TempDir())
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		rep, err := analysis.Run(ctx, analysis.Options{AssemblyPath: app})
		if err != nil {
			b.Fatalf("Run failed: %v", err)
		}
		if len(rep.Conflicts) != 1 {
			b.Fatalf("got %d conflicts", len(rep.Conflicts))
		}
		if err := report.Write(io.Discard, rep, report.FormatText); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}
