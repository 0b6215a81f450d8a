// SPDX-License-Identifier: MPL-2.0

package clrmeta

import (
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/asmconflicts/pkg/assembly"
)

// cliHeaderSize is the size of the IMAGE_COR20_HEADER structure.
const cliHeaderSize = 72

// Reader reads assembly definitions from PE files on disk.
// The zero value is ready to use.
type Reader struct{}

// ReadDefinition opens path and returns the assembly definition it declares.
func (Reader) ReadDefinition(path string) (*assembly.Definition, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &assembly.Definition{
		Identity:   img.Identity,
		References: img.References,
		Path:       path,
	}, nil
}

// Open reads the CLI metadata of the PE image at path.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open assembly: %w", err)
	}
	defer f.Close()

	img, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Read reads the CLI metadata of the PE image provided by r.
func Read(r io.ReaderAt) (*Image, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAssembly, err)
	}
	defer f.Close()

	dir, ok := comDescriptor(f)
	if !ok || dir.VirtualAddress == 0 {
		return nil, fmt.Errorf("%w: no CLI header", ErrNotAssembly)
	}

	header, err := readRVA(f, dir.VirtualAddress, cliHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("CLI header: %w", err)
	}
	metaRVA := binary.LittleEndian.Uint32(header[8:12])
	metaSize := binary.LittleEndian.Uint32(header[12:16])
	if metaRVA == 0 || metaSize == 0 {
		return nil, malformed("CLI header has no metadata directory")
	}

	root, err := readRVA(f, metaRVA, metaSize)
	if err != nil {
		return nil, fmt.Errorf("metadata root: %w", err)
	}
	return ParseMetadata(root)
}

// comDescriptor returns the CLI header data directory of a PE image.
func comDescriptor(f *pe.File) (pe.DataDirectory, bool) {
	const entry = pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > entry {
			return oh.DataDirectory[entry], true
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > entry {
			return oh.DataDirectory[entry], true
		}
	}
	return pe.DataDirectory{}, false
}

// readRVA reads size bytes at a relative virtual address.
func readRVA(f *pe.File, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		span := max(s.VirtualSize, s.Size)
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+span {
			continue
		}
		buf := make([]byte, size)
		n, err := s.ReadAt(buf, int64(rva-s.VirtualAddress))
		if n < len(buf) {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, malformed("section %s truncated at rva %#x: %v", s.Name, rva, err)
		}
		return buf, nil
	}
	return nil, malformed("rva %#x is not mapped by any section", rva)
}
