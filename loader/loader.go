package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/machine-dialect/mdvm/vm"
)

// FormatVersion is the current bytecode format version. Increment when
// making incompatible changes to the format.
const FormatVersion uint32 = 1

// Magic bytes for bytecode files: "MDBC" (Machine Dialect ByteCode).
var Magic = []byte{'M', 'D', 'B', 'C'}

// File extensions for the program/metadata file pair.
const (
	BytecodeExt = ".mdbc"
	MetadataExt = ".mdbm"
)

// HeaderSize is the fixed header length:
//
//	[magic:4] [version:4] [flags:4] [reserved:4] [body_len:8]
//
// all big-endian. A file shorter than this is malformed regardless of
// content.
const HeaderSize = 24

// ---------------------------------------------------------------------------
// Load Error Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic       = errors.New("invalid magic number: expected MDBC")
	ErrInvalidFormat      = errors.New("invalid bytecode format")
	ErrUnsupportedVersion = errors.New("unsupported bytecode version")
	ErrInvalidMetadata    = errors.New("invalid metadata file")
)

// Header is the parsed fixed header of a bytecode file.
type Header struct {
	Version uint32
	Flags   uint32
	BodyLen uint64
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadModule loads the bytecode file pair for the given path. The path may
// name the .mdbc file directly or omit the extension; the optional .mdbm
// metadata sidecar is derived from the same base. A missing sidecar is not
// an error; a malformed one is.
func LoadModule(path string) (*vm.BytecodeModule, *Metadata, error) {
	base := strings.TrimSuffix(path, BytecodeExt)

	data, err := os.ReadFile(base + BytecodeExt)
	if err != nil {
		return nil, nil, fmt.Errorf("reading bytecode file: %w", err)
	}

	mod, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}

	var meta *Metadata
	metaPath := base + MetadataExt
	if metaData, err := os.ReadFile(metaPath); err == nil {
		meta, err = ParseMetadata(metaData)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", metaPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("reading metadata file: %w", err)
	}

	return mod, meta, nil
}

// Decode parses a complete bytecode byte stream: fixed header, then CBOR
// body. The header is validated before any body parsing is attempted.
func Decode(data []byte) (*vm.BytecodeModule, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	body := data[HeaderSize:]
	if uint64(len(body)) < header.BodyLen {
		return nil, fmt.Errorf("%w: body truncated: header declares %d bytes, have %d",
			ErrInvalidFormat, header.BodyLen, len(body))
	}

	return decodeBody(body[:header.BodyLen], header.Version, header.Flags)
}

// ParseHeader validates the fixed header. Magic is checked before length so
// a wrong file type is always reported as such once the minimum header is
// present.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		if len(data) >= len(Magic) && !bytes.Equal(data[:len(Magic)], Magic) {
			return Header{}, ErrInvalidMagic
		}
		return Header{}, fmt.Errorf("%w: file shorter than %d-byte header", ErrInvalidFormat, HeaderSize)
	}
	if !bytes.Equal(data[:len(Magic)], Magic) {
		return Header{}, ErrInvalidMagic
	}

	h := Header{
		Version: binary.BigEndian.Uint32(data[4:8]),
		Flags:   binary.BigEndian.Uint32(data[8:12]),
		BodyLen: binary.BigEndian.Uint64(data[16:24]),
	}
	if h.Version > FormatVersion {
		return Header{}, fmt.Errorf("%w: version %d is newer than supported version %d",
			ErrUnsupportedVersion, h.Version, FormatVersion)
	}
	return h, nil
}
