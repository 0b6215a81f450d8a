// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/invowk/asmconflicts/pkg/assembly"
)

var errBadImage = errors.New("bad image")

// fakeReader serves definitions from memory and counts reads per path.
type fakeReader struct {
	defs  map[string]*assembly.Definition
	errs  map[string]error
	reads map[string]int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		defs:  make(map[string]*assembly.Definition),
		errs:  make(map[string]error),
		reads: make(map[string]int),
	}
}

func (f *fakeReader) add(path, identity string) *assembly.Definition {
	def := &assembly.Definition{Identity: assembly.MustParseIdentity(identity), Path: path}
	f.defs[path] = def
	return def
}

func (f *fakeReader) ReadDefinition(path string) (*assembly.Definition, error) {
	f.reads[path]++
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if def, ok := f.defs[path]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("open assembly: %w", fs.ErrNotExist)
}

func TestResolver_RegisteredFirst(t *testing.T) {
	t.Parallel()

	reader := newFakeReader()
	reader.add(filepath.Join("lib", "App.exe"), "App, Version=9.0.0.0")

	root := &assembly.Definition{Identity: assembly.MustParseIdentity("App, Version=1.0.0.0")}
	r := New(reader, WithSearchDirectories("lib"))
	r.Register(root)

	got, err := r.Resolve(root.Identity)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != root {
		t.Errorf("Resolve() = %v, want the registered root", got.Identity)
	}
	if len(reader.reads) != 0 {
		t.Errorf("registered definition should not be probed, reads = %v", reader.reads)
	}
}

func TestResolver_ProbeOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    map[string]string
		wantPath string
	}{
		{
			name: "exe before dll",
			files: map[string]string{
				filepath.Join("a", "Lib.exe"): "Lib, Version=1.0.0.0",
				filepath.Join("a", "Lib.dll"): "Lib, Version=1.0.0.0",
			},
			wantPath: filepath.Join("a", "Lib.exe"),
		},
		{
			name: "directories in registration order",
			files: map[string]string{
				filepath.Join("a", "Lib.dll"): "Lib, Version=1.0.0.0",
				filepath.Join("b", "Lib.exe"): "Lib, Version=1.0.0.0",
			},
			wantPath: filepath.Join("a", "Lib.dll"),
		},
		{
			name: "falls through to later directory",
			files: map[string]string{
				filepath.Join("b", "Lib.dll"): "Lib, Version=1.0.0.0",
			},
			wantPath: filepath.Join("b", "Lib.dll"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader := newFakeReader()
			for path, id := range tt.files {
				reader.add(path, id)
			}
			r := New(reader, WithSearchDirectories("a"))
			r.AddSearchDirectory("b")

			def, err := r.Resolve(assembly.MustParseIdentity("Lib, Version=1.0.0.0"))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if def.Path != tt.wantPath {
				t.Errorf("resolved %s, want %s", def.Path, tt.wantPath)
			}
		})
	}
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	ref := assembly.MustParseIdentity("Missing, Version=1.0.0.0")
	_, err := New(newFakeReader(), WithSearchDirectories("a", "b")).Resolve(ref)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T: %v", err, err)
	}
	if resErr.Reason != ReasonNotFound || resErr.Reference != ref {
		t.Errorf("unexpected error fields: %+v", resErr)
	}
	if !errors.Is(err, ErrUnresolved) {
		t.Error("error should wrap ErrUnresolved")
	}
	if resErr.Err != nil {
		t.Errorf("missing files should not be recorded as read errors, got %v", resErr.Err)
	}
}

func TestResolver_SkipsBadImages(t *testing.T) {
	t.Parallel()

	reader := newFakeReader()
	reader.errs[filepath.Join("a", "Lib.exe")] = errBadImage
	reader.add(filepath.Join("a", "Lib.dll"), "Lib, Version=1.0.0.0")

	def, err := New(reader, WithSearchDirectories("a")).Resolve(assembly.MustParseIdentity("Lib, Version=1.0.0.0"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if def.Path != filepath.Join("a", "Lib.dll") {
		t.Errorf("resolved %s, want the dll", def.Path)
	}

	reader.errs[filepath.Join("b", "Only.dll")] = errBadImage
	_, err = New(reader, WithSearchDirectories("b")).Resolve(assembly.MustParseIdentity("Only, Version=1.0.0.0"))
	if !errors.Is(err, errBadImage) || !errors.Is(err, ErrUnresolved) {
		t.Errorf("error = %v, want ErrUnresolved wrapping the read failure", err)
	}
}

func TestResolver_MatchPolicy(t *testing.T) {
	t.Parallel()

	ref := assembly.MustParseIdentity("Lib, Version=1.0.0.0, PublicKeyToken=aa")
	onDisk := "Lib, Version=2.0.0.0, PublicKeyToken=aa"

	t.Run("exact rejects a different identity", func(t *testing.T) {
		t.Parallel()

		reader := newFakeReader()
		reader.add(filepath.Join("a", "Lib.dll"), onDisk)

		_, err := New(reader, WithSearchDirectories("a")).Resolve(ref)
		var resErr *ResolutionError
		if !errors.As(err, &resErr) {
			t.Fatalf("expected *ResolutionError, got %v", err)
		}
		if resErr.Reason != ReasonMismatch {
			t.Errorf("Reason = %q, want %q", resErr.Reason, ReasonMismatch)
		}
		if resErr.Found.Key() != assembly.MustParseIdentity(onDisk).Key() {
			t.Errorf("Found = %v", resErr.Found)
		}
	})

	t.Run("redirect accepts a different identity", func(t *testing.T) {
		t.Parallel()

		reader := newFakeReader()
		reader.add(filepath.Join("a", "Lib.dll"), onDisk)

		def, err := New(reader, WithSearchDirectories("a"), WithPolicy(PolicyRedirect)).Resolve(ref)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if def.Identity.Version().Major != 2 {
			t.Errorf("resolved %v, want version 2", def.Identity)
		}
	})
}

func TestResolver_ReadsEachCandidateOnce(t *testing.T) {
	t.Parallel()

	reader := newFakeReader()
	path := filepath.Join("a", "Lib.dll")
	reader.add(path, "Lib, Version=2.0.0.0")
	r := New(reader, WithSearchDirectories("a"), WithExtensions(".dll"))

	// Both requests probe the same file; only the second matches exactly.
	if _, err := r.Resolve(assembly.MustParseIdentity("Lib, Version=1.0.0.0")); err == nil {
		t.Fatal("expected mismatch for version 1")
	}
	if _, err := r.Resolve(assembly.MustParseIdentity("Lib, Version=2.0.0.0")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if reader.reads[path] != 1 {
		t.Errorf("candidate read %d times, want 1", reader.reads[path])
	}
}

func TestMatchPolicy_IsValid(t *testing.T) {
	t.Parallel()

	for _, p := range []MatchPolicy{PolicyExact, PolicyRedirect} {
		if ok, errs := p.IsValid(); !ok {
			t.Errorf("%q should be valid, got %v", p, errs)
		}
	}

	ok, errs := MatchPolicy("loose").IsValid()
	if ok || len(errs) != 1 {
		t.Fatalf("IsValid(loose) = %v, %v", ok, errs)
	}
	if !errors.Is(errs[0], ErrInvalidMatchPolicy) {
		t.Errorf("error should wrap ErrInvalidMatchPolicy, got %v", errs[0])
	}
}
