package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(source string) ([]uint32, error) {
	code, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile shader: %w", err)
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("gpu: compile shader: spir-v length %d is not word aligned", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}
