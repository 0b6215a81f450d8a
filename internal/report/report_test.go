// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/invowk/asmconflicts/internal/conflict"
	"github.com/invowk/asmconflicts/internal/refgraph"
	"github.com/invowk/asmconflicts/internal/refpath"
	"github.com/invowk/asmconflicts/internal/testutil"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// sample analyses R -> A 1.0 (aa), R -> B -> A 2.0 (bb), R -> Gone.
func sample(t *testing.T) *Report {
	t.Helper()

	cat := testutil.NewCatalog()
	root := cat.Add("R, Version=1.0.0.0",
		"A, Version=1.0.0.0, PublicKeyToken=aa", "B, Version=1.0.0.0", "Gone, Version=3.0.0.0")
	cat.Add("A, Version=1.0.0.0, PublicKeyToken=aa")
	cat.Add("B, Version=1.0.0.0", "A, Version=2.0.0.0, PublicKeyToken=bb")
	cat.Add("A, Version=2.0.0.0, PublicKeyToken=bb")

	g := refgraph.Build(root, cat)
	groups := conflict.Detect(g.Identities, false, conflict.DefaultSystemFilter())
	paths := make(map[string][]refpath.Path)
	for _, grp := range groups {
		paths[grp.Name] = refpath.Find(grp.Name, g.Root)
	}
	return New("/apps/R.exe", g, groups, paths)
}

func TestNew(t *testing.T) {
	t.Parallel()

	r := sample(t)
	if r.Root != "R, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null" {
		t.Errorf("Root = %q", r.Root)
	}
	want := Summary{Nodes: 5, Conflicts: 1, Unresolved: 1}
	if r.Summary != want {
		t.Errorf("Summary = %+v, want %+v", r.Summary, want)
	}
	if len(r.Conflicts) != 1 || len(r.Conflicts[0].Identities) != 2 || len(r.Conflicts[0].References) != 2 {
		t.Fatalf("Conflicts = %+v", r.Conflicts)
	}
	if len(r.Unresolved) != 1 || r.Unresolved[0].Reference != "Gone, Version=3.0.0.0, Culture=neutral, PublicKeyToken=null" {
		t.Errorf("Unresolved = %+v", r.Unresolved)
	}
}

func TestWrite_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sample(t), FormatText); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := "A has conflicts. Reference paths\n" +
		"  (1.0.0.0, aa) R => A\n" +
		"  (2.0.0.0, bb) R => B => A\n" +
		"\n"
	if buf.String() != want {
		t.Errorf("text output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWrite_TextNoConflicts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, &Report{Root: "R"}, FormatText); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestWrite_Structured(t *testing.T) {
	t.Parallel()

	decoders := map[Format]func([]byte, any) error{
		FormatJSON: json.Unmarshal,
		FormatYAML: yaml.Unmarshal,
		FormatTOML: toml.Unmarshal,
	}

	for format, decode := range decoders {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := Write(&buf, sample(t), format); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			var got Report
			if err := decode(buf.Bytes(), &got); err != nil {
				t.Fatalf("output does not decode: %v\n%s", err, buf.String())
			}
			if len(got.Conflicts) != 1 || got.Conflicts[0].Name != "A" {
				t.Fatalf("Conflicts = %+v", got.Conflicts)
			}
			last := got.Conflicts[0].References[1]
			if last.Path != "R => B => A" || last.Version != "2.0.0.0" || last.PublicKeyToken != "bb" {
				t.Errorf("second reference = %+v", last)
			}
			if got.Summary.Unresolved != 1 {
				t.Errorf("Summary = %+v", got.Summary)
			}
		})
	}
}

func TestWrite_InvalidFormat(t *testing.T) {
	t.Parallel()

	err := Write(&bytes.Buffer{}, &Report{}, Format("xml"))
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Write(xml) error = %v, want ErrInvalidFormat", err)
	}
	if ok, _ := Format("xml").IsValid(); ok {
		t.Error("xml should not be a valid format")
	}
}
