package loader

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/machine-dialect/mdvm/vm"
)

// Encode serializes a module to the on-disk format: fixed big-endian header
// followed by the canonical-CBOR body.
func Encode(mod *vm.BytecodeModule) ([]byte, error) {
	body, err := encodeBody(mod)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, HeaderSize+len(body))
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint32(buf, FormatVersion)
	buf = binary.BigEndian.AppendUint32(buf, mod.Flags)
	buf = binary.BigEndian.AppendUint32(buf, 0) // reserved
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(body)))
	buf = append(buf, body...)
	return buf, nil
}

// Write writes the bytecode file pair for the given base path. A nil
// metadata writes no sidecar.
func Write(path string, mod *vm.BytecodeModule, meta *Metadata) error {
	base := strings.TrimSuffix(path, BytecodeExt)

	data, err := Encode(mod)
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+BytecodeExt, data, 0o644); err != nil {
		return fmt.Errorf("writing bytecode file: %w", err)
	}

	if meta != nil {
		metaData, err := meta.Encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(base+MetadataExt, metaData, 0o644); err != nil {
			return fmt.Errorf("writing metadata file: %w", err)
		}
	}

	return nil
}
