package loader

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Metadata is the optional .mdbm sidecar: auxiliary debug and source
// information the engine itself never needs.
type Metadata struct {
	Source    string            `cbor:"source,omitempty"`    // path of the compiled source file
	Compiler  string            `cbor:"compiler,omitempty"`  // producing toolchain version
	Functions map[string]string `cbor:"functions,omitempty"` // function name -> source location
	Notes     string            `cbor:"notes,omitempty"`
}

// ParseMetadata decodes a metadata sidecar.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &m, nil
}

// Encode serializes metadata to CBOR.
func (m *Metadata) Encode() ([]byte, error) {
	return cborEncMode.Marshal(m)
}
