// SPDX-License-Identifier: MPL-2.0

// Package clrmeta reads the identity and assembly references of a .NET
// assembly from its ECMA-335 metadata.
//
// Only the pieces needed for reference analysis are decoded: the metadata
// root, the #~ (or #-) table stream, the #Strings and #Blob heaps, and the
// Assembly and AssemblyRef tables. Row sizes of every table preceding
// AssemblyRef are computed from the table schemas so the reader works on real
// compiler output, not only on minimal images.
//
// Public keys are reduced to the conventional 8-byte token (the reversed low
// 8 bytes of the key's SHA-1 hash).
package clrmeta
