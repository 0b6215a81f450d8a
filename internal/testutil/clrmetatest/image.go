// SPDX-License-Identifier: MPL-2.0

package clrmetatest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"testing"

	"github.com/invowk/asmconflicts/pkg/assembly"
)

const (
	peHeaderOffset  = 0x80
	fileAlignment   = 0x200
	sectionRVA      = 0x2000
	cliHeaderSize   = 72
	defaultRuntime  = "v4.0.30319"
	tableAssembly   = 0x20
	tableAssemblyRf = 0x23
)

type (
	// Image describes a synthesized assembly.
	Image struct {
		self           assembly.Identity
		publicKey      []byte
		refs           []reference
		wideHeaps      bool
		runtimeVersion string
	}

	// ImageOption configures an Image.
	ImageOption func(*Image)

	reference struct {
		id        assembly.Identity
		publicKey []byte
	}

	// heap accumulates a #Strings or #Blob heap.
	heap struct {
		buf   bytes.Buffer
		index map[string]uint32
	}
)

// NewImage creates an image declaring self. The token of self is ignored:
// an assembly's own token is derived from its public key (see WithPublicKey).
func NewImage(self assembly.Identity, opts ...ImageOption) *Image {
	img := &Image{self: self, runtimeVersion: defaultRuntime}
	for _, opt := range opts {
		opt(img)
	}
	return img
}

// WithReference appends an AssemblyRef carrying id's public key token.
func WithReference(id assembly.Identity) ImageOption {
	return func(img *Image) {
		img.refs = append(img.refs, reference{id: id})
	}
}

// WithPublicKeyReference appends an AssemblyRef that stores a full public key
// instead of a token. The token of id is ignored.
func WithPublicKeyReference(id assembly.Identity, key []byte) ImageOption {
	return func(img *Image) {
		img.refs = append(img.refs, reference{id: id, publicKey: key})
	}
}

// WithPublicKey sets the assembly's own public key.
func WithPublicKey(key []byte) ImageOption {
	return func(img *Image) {
		img.publicKey = key
	}
}

// WithWideHeaps forces 4-byte heap indexes in every table.
func WithWideHeaps() ImageOption {
	return func(img *Image) {
		img.wideHeaps = true
	}
}

// WithRuntimeVersion overrides the metadata root version string.
func WithRuntimeVersion(v string) ImageOption {
	return func(img *Image) {
		img.runtimeVersion = v
	}
}

// WriteFile writes the PE image to path.
func (img *Image) WriteFile(path string) error {
	return os.WriteFile(path, img.Bytes(), 0o644)
}

// MustWriteFile writes the PE image to path, failing the test on error.
func (img *Image) MustWriteFile(t testing.TB, path string) {
	t.Helper()
	if err := img.WriteFile(path); err != nil {
		t.Fatalf("failed to write assembly %s: %v", path, err)
	}
}

// Bytes returns a complete PE32 file.
func (img *Image) Bytes() []byte {
	root := img.MetadataRoot()

	var text bytes.Buffer
	writeLE(&text, uint32(cliHeaderSize))
	writeLE(&text, uint16(2)) // MajorRuntimeVersion
	writeLE(&text, uint16(5)) // MinorRuntimeVersion
	writeLE(&text, uint32(sectionRVA+cliHeaderSize))
	writeLE(&text, uint32(len(root)))
	writeLE(&text, uint32(1)) // COMIMAGE_FLAGS_ILONLY
	text.Write(make([]byte, cliHeaderSize-text.Len()))
	text.Write(root)
	virtualSize := uint32(text.Len())
	padTo(&text, fileAlignment)

	var out bytes.Buffer
	dos := make([]byte, peHeaderOffset)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], peHeaderOffset)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	var oh pe.OptionalHeader32
	writeLE(&out, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_DLL,
	})

	oh = pe.OptionalHeader32{
		Magic:                 0x10b,
		SizeOfCode:            uint32(text.Len()),
		BaseOfCode:            sectionRVA,
		ImageBase:             0x400000,
		SectionAlignment:      sectionRVA,
		FileAlignment:         fileAlignment,
		MajorSubsystemVersion: 4,
		SizeOfImage:           sectionRVA * 2,
		SizeOfHeaders:         fileAlignment,
		Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes:   16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR] = pe.DataDirectory{
		VirtualAddress: sectionRVA,
		Size:           cliHeaderSize,
	}
	writeLE(&out, oh)

	writeLE(&out, pe.SectionHeader32{
		Name:             [8]uint8{'.', 't', 'e', 'x', 't'},
		VirtualSize:      virtualSize,
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    uint32(text.Len()),
		PointerToRawData: fileAlignment,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	})
	padTo(&out, fileAlignment)
	out.Write(text.Bytes())

	return out.Bytes()
}

// MetadataRoot returns only the ECMA-335 metadata root.
func (img *Image) MetadataRoot() []byte {
	strs := newHeap()
	blobs := newHeap()
	guids := make([]byte, 16)
	guids[0] = 0x01

	idx := func(v uint32, buf *bytes.Buffer) {
		if img.wideHeaps {
			writeLE(buf, v)
			return
		}
		writeLE(buf, uint16(v))
	}

	var rows bytes.Buffer

	// Module
	writeLE(&rows, uint16(0))
	idx(strs.addString(img.self.Name()+".dll"), &rows)
	idx(1, &rows) // Mvid
	idx(0, &rows)
	idx(0, &rows)

	// TypeRef: one System.Object-like type per reference, scoped to it.
	for i, ref := range img.refs {
		writeLE(&rows, uint16(uint32(i+1)<<2|2)) // ResolutionScope -> AssemblyRef
		idx(strs.addString("Type"+ref.id.Name()), &rows)
		idx(strs.addString(ref.id.Name()), &rows)
	}

	// Assembly
	var flags uint32
	if len(img.publicKey) > 0 {
		flags = 0x0001
	}
	v := img.self.Version()
	writeLE(&rows, uint32(0x8004)) // SHA1
	writeLE(&rows, [4]uint16{v.Major, v.Minor, v.Build, v.Revision})
	writeLE(&rows, flags)
	idx(blobs.addBlob(img.publicKey), &rows)
	idx(strs.addString(img.self.Name()), &rows)
	idx(strs.addString(img.self.Culture()), &rows)

	// AssemblyRef
	for _, ref := range img.refs {
		rv := ref.id.Version()
		writeLE(&rows, [4]uint16{rv.Major, rv.Minor, rv.Build, rv.Revision})
		keyOrToken := ref.id.PublicKeyToken()
		var refFlags uint32
		if len(ref.publicKey) > 0 {
			keyOrToken = ref.publicKey
			refFlags = 0x0001
		}
		writeLE(&rows, refFlags)
		idx(blobs.addBlob(keyOrToken), &rows)
		idx(strs.addString(ref.id.Name()), &rows)
		idx(strs.addString(ref.id.Culture()), &rows)
		idx(0, &rows) // HashValue
	}

	valid := uint64(1)<<0x00 | uint64(1)<<tableAssembly
	counts := []uint32{1}
	if len(img.refs) > 0 {
		valid |= uint64(1)<<0x01 | uint64(1)<<tableAssemblyRf
		counts = append(counts, uint32(len(img.refs)), 1, uint32(len(img.refs)))
	} else {
		counts = append(counts, 1)
	}

	var heapSizes uint8
	if img.wideHeaps {
		heapSizes = 0x07
	}

	var tables bytes.Buffer
	writeLE(&tables, uint32(0))
	writeLE(&tables, [2]uint8{2, 0})
	writeLE(&tables, heapSizes)
	writeLE(&tables, uint8(1))
	writeLE(&tables, valid)
	writeLE(&tables, uint64(0))
	for _, c := range counts {
		writeLE(&tables, c)
	}
	tables.Write(rows.Bytes())

	streams := []struct {
		name string
		data []byte
	}{
		{"#~", tables.Bytes()},
		{"#Strings", strs.bytes()},
		{"#GUID", guids},
		{"#Blob", blobs.bytes()},
	}

	version := []byte(img.runtimeVersion + "\x00")
	for len(version)%4 != 0 {
		version = append(version, 0)
	}

	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + paddedLen(len(s.name)+1)
	}

	var root bytes.Buffer
	writeLE(&root, uint32(0x424A5342))
	writeLE(&root, uint16(1))
	writeLE(&root, uint16(1))
	writeLE(&root, uint32(0))
	writeLE(&root, uint32(len(version)))
	root.Write(version)
	writeLE(&root, uint16(0))
	writeLE(&root, uint16(len(streams)))

	offset := headerSize
	for _, s := range streams {
		size := paddedLen(len(s.data))
		writeLE(&root, uint32(offset))
		writeLE(&root, uint32(size))
		name := make([]byte, paddedLen(len(s.name)+1))
		copy(name, s.name)
		root.Write(name)
		offset += size
	}
	for _, s := range streams {
		root.Write(s.data)
		padTo(&root, 4)
	}

	return root.Bytes()
}

func newHeap() *heap {
	h := &heap{index: make(map[string]uint32)}
	h.buf.WriteByte(0)
	return h
}

func (h *heap) addString(s string) uint32 {
	if s == "" {
		return 0
	}
	if i, ok := h.index[s]; ok {
		return i
	}
	i := uint32(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.index[s] = i
	return i
}

func (h *heap) addBlob(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	i := uint32(h.buf.Len())
	n := len(b)
	switch {
	case n < 0x80:
		h.buf.WriteByte(byte(n))
	case n < 0x4000:
		h.buf.WriteByte(byte(n>>8) | 0x80)
		h.buf.WriteByte(byte(n))
	default:
		h.buf.WriteByte(byte(n>>24) | 0xC0)
		h.buf.WriteByte(byte(n >> 16))
		h.buf.WriteByte(byte(n >> 8))
		h.buf.WriteByte(byte(n))
	}
	h.buf.Write(b)
	return i
}

func (h *heap) bytes() []byte {
	out := bytes.Clone(h.buf.Bytes())
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func paddedLen(n int) int {
	return (n + 3) &^ 3
}

func padTo(buf *bytes.Buffer, align int) {
	if rem := buf.Len() % align; rem != 0 {
		buf.Write(make([]byte, align-rem))
	}
}

func writeLE(buf *bytes.Buffer, v any) {
	// Writes to a bytes.Buffer of fixed-size values cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, v)
}
