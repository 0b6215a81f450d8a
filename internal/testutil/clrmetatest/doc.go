// SPDX-License-Identifier: MPL-2.0

// Package clrmetatest synthesizes minimal .NET assemblies for tests.
//
// The images are real PE32 files with a CLI header and an ECMA-335 metadata
// root holding Module, TypeRef, Assembly and AssemblyRef tables, so they can be
// read back through pkg/clrmeta without checking binaries into the repository.
//
// # Usage
//
//	img := clrmetatest.NewImage(assembly.MustParseIdentity("App, Version=1.0.0.0"),
//	    clrmetatest.WithReference(assembly.MustParseIdentity("Lib, Version=2.0.0.0")),
//	)
//	img.MustWriteFile(t, filepath.Join(dir, "App.exe"))
package clrmetatest
