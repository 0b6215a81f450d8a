// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // strong-name tokens are defined over SHA-1
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/invowk/asmconflicts/pkg/assembly"
)

const (
	// metadataSignature is "BSJB" read as a little-endian uint32.
	metadataSignature = 0x424A5342

	// assemblyFlagPublicKey marks an AssemblyRef whose blob holds a full public key.
	assemblyFlagPublicKey = 0x0001

	tokenSize = 8
)

var (
	// ErrNotAssembly is returned when the input is not a .NET assembly
	// (not a PE image, no CLI header, or no Assembly row).
	ErrNotAssembly = errors.New("not a .NET assembly")
	// ErrMalformed is returned when CLI metadata is present but cannot be decoded.
	ErrMalformed = errors.New("malformed CLI metadata")
)

type (
	// Image is the decoded subset of an assembly's metadata.
	Image struct {
		// RuntimeVersion is the version string of the metadata root (e.g. "v4.0.30319").
		RuntimeVersion string
		// Identity is the assembly's own identity.
		Identity assembly.Identity
		// References are the AssemblyRef rows in table order.
		References []assembly.Identity
	}

	// metadata holds the located streams of a metadata root.
	metadata struct {
		version string
		tables  []byte
		strings []byte
		blobs   []byte
	}

	// cursor is a bounds-checked little-endian reader over a byte slice.
	// The first out-of-range read latches err; later reads return zero.
	cursor struct {
		b   []byte
		off int
		err error
	}
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.b) {
		c.err = malformed("read of %d bytes at offset %d exceeds %d", n, c.off, len(c.b))
		return nil
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out
}

func (c *cursor) u8() uint8 {
	if b := c.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (c *cursor) u16() uint16 {
	if b := c.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if b := c.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (c *cursor) u64() uint64 {
	if b := c.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// sized reads an unsigned value of width 2 or 4.
func (c *cursor) sized(width int) uint32 {
	if width == 4 {
		return c.u32()
	}
	return uint32(c.u16())
}

// ParseMetadata decodes a metadata root (the bytes the CLI header's MetaData
// directory points at).
func ParseMetadata(root []byte) (*Image, error) {
	md, err := parseRoot(root)
	if err != nil {
		return nil, err
	}
	return md.decode()
}

func parseRoot(root []byte) (*metadata, error) {
	c := &cursor{b: root}
	if c.u32() != metadataSignature {
		if c.err != nil {
			return nil, c.err
		}
		return nil, fmt.Errorf("%w: missing metadata signature", ErrNotAssembly)
	}
	c.u16() // major version
	c.u16() // minor version
	c.u32() // reserved
	length := int(c.u32())
	version := c.take(length)
	c.u16() // flags
	streams := int(c.u16())
	if c.err != nil {
		return nil, c.err
	}

	md := &metadata{version: string(bytes.TrimRight(version, "\x00"))}
	for range streams {
		offset := int(c.u32())
		size := int(c.u32())
		name := readStreamName(c)
		if c.err != nil {
			return nil, c.err
		}
		if offset < 0 || size < 0 || offset+size > len(root) {
			return nil, malformed("stream %q [%d:%d] outside metadata of %d bytes", name, offset, offset+size, len(root))
		}
		data := root[offset : offset+size]
		switch name {
		case "#~", "#-":
			md.tables = data
		case "#Strings":
			md.strings = data
		case "#Blob":
			md.blobs = data
		}
	}

	if md.tables == nil {
		return nil, malformed("no table stream")
	}
	return md, nil
}

// readStreamName reads a NUL-terminated stream name padded to 4 bytes.
func readStreamName(c *cursor) string {
	start := c.off
	for c.err == nil {
		if c.u8() == 0 {
			break
		}
	}
	if c.err != nil {
		return ""
	}
	name := string(c.b[start : c.off-1])
	if pad := (c.off - start) % 4; pad != 0 {
		c.take(4 - pad)
	}
	return name
}

func (md *metadata) decode() (*Image, error) {
	c := &cursor{b: md.tables}
	c.u32() // reserved
	c.u8()  // major version
	c.u8()  // minor version
	l := &layout{heapSizes: c.u8()}
	c.u8() // reserved
	valid := c.u64()
	c.u64() // sorted
	for t := range maxTables {
		if valid&(1<<uint(t)) != 0 {
			l.rows[t] = c.u32()
		}
	}
	if l.heapSizes&heapExtraData != 0 {
		c.u32()
	}
	if c.err != nil {
		return nil, c.err
	}

	offsets := make(map[table]int)
	pos := c.off
	for t := tModule; t <= tAssemblyRef; t++ {
		if valid&(1<<uint(t)) == 0 {
			continue
		}
		offsets[t] = pos
		pos += int(l.rows[t]) * l.rowSize(t)
	}

	if l.rows[tAssembly] == 0 {
		return nil, fmt.Errorf("%w: no Assembly row (module without manifest)", ErrNotAssembly)
	}

	img := &Image{RuntimeVersion: md.version}

	row := &cursor{b: md.tables, off: offsets[tAssembly]}
	self, err := md.readAssembly(row, l)
	if err != nil {
		return nil, err
	}
	img.Identity = self

	if n := l.rows[tAssemblyRef]; n > 0 {
		row = &cursor{b: md.tables, off: offsets[tAssemblyRef]}
		img.References = make([]assembly.Identity, 0, n)
		for i := range n {
			ref, err := md.readAssemblyRef(row, l)
			if err != nil {
				return nil, fmt.Errorf("AssemblyRef row %d: %w", i+1, err)
			}
			img.References = append(img.References, ref)
		}
	}

	return img, nil
}

func (md *metadata) readAssembly(c *cursor, l *layout) (assembly.Identity, error) {
	c.u32() // HashAlgId
	version := assembly.NewVersion(c.u16(), c.u16(), c.u16(), c.u16())
	c.u32() // Flags
	publicKey := c.sized(blob(l))
	name := c.sized(str(l))
	culture := c.sized(str(l))
	if c.err != nil {
		return assembly.Identity{}, c.err
	}

	key, err := md.blob(publicKey)
	if err != nil {
		return assembly.Identity{}, err
	}
	return md.identity(name, culture, version, tokenFromPublicKey(key))
}

func (md *metadata) readAssemblyRef(c *cursor, l *layout) (assembly.Identity, error) {
	version := assembly.NewVersion(c.u16(), c.u16(), c.u16(), c.u16())
	flags := c.u32()
	keyOrToken := c.sized(blob(l))
	name := c.sized(str(l))
	culture := c.sized(str(l))
	c.sized(blob(l)) // HashValue
	if c.err != nil {
		return assembly.Identity{}, c.err
	}

	token, err := md.blob(keyOrToken)
	if err != nil {
		return assembly.Identity{}, err
	}
	if flags&assemblyFlagPublicKey != 0 {
		token = tokenFromPublicKey(token)
	}
	return md.identity(name, culture, version, token)
}

func (md *metadata) identity(name, culture uint32, version assembly.Version, token []byte) (assembly.Identity, error) {
	simple, err := md.string(name)
	if err != nil {
		return assembly.Identity{}, err
	}
	if simple == "" {
		return assembly.Identity{}, malformed("empty assembly name")
	}
	cult, err := md.string(culture)
	if err != nil {
		return assembly.Identity{}, err
	}
	return assembly.NewIdentity(simple, version, cult, token), nil
}

// string reads a NUL-terminated UTF-8 string from the #Strings heap.
func (md *metadata) string(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	if int(idx) >= len(md.strings) {
		return "", malformed("string index %d outside heap of %d bytes", idx, len(md.strings))
	}
	s := md.strings[idx:]
	end := bytes.IndexByte(s, 0)
	if end < 0 {
		return "", malformed("unterminated string at index %d", idx)
	}
	return string(s[:end]), nil
}

// blob reads a length-prefixed entry from the #Blob heap (II.24.2.4).
func (md *metadata) blob(idx uint32) ([]byte, error) {
	if idx == 0 {
		return nil, nil
	}
	c := &cursor{b: md.blobs, off: int(idx)}
	length, err := readCompressed(c)
	if err != nil {
		return nil, err
	}
	data := c.take(int(length))
	if c.err != nil {
		return nil, c.err
	}
	return data, nil
}

// readCompressed reads an ECMA-335 compressed unsigned integer.
func readCompressed(c *cursor) (uint32, error) {
	b0 := c.u8()
	var n uint32
	switch {
	case b0&0x80 == 0:
		n = uint32(b0)
	case b0&0xC0 == 0x80:
		n = uint32(b0&0x3F)<<8 | uint32(c.u8())
	case b0&0xE0 == 0xC0:
		n = uint32(b0&0x1F)<<24 | uint32(c.u8())<<16 | uint32(c.u8())<<8 | uint32(c.u8())
	default:
		return 0, malformed("invalid compressed integer prefix %#x", b0)
	}
	if c.err != nil {
		return 0, c.err
	}
	return n, nil
}

// tokenFromPublicKey derives the 8-byte public key token: the last eight bytes
// of the key's SHA-1 hash, in reverse order.
func tokenFromPublicKey(key []byte) []byte {
	if len(key) == 0 {
		return nil
	}
	sum := sha1.Sum(key) //nolint:gosec // see import
	token := slices.Clone(sum[len(sum)-tokenSize:])
	slices.Reverse(token)
	return token
}
