package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/jsvm"
	"github.com/wippyai/jsvm/errors"
)

// WrapMemory wraps a wazero api.Memory to implement jsvm.Memory.
func WrapMemory(mem api.Memory) jsvm.Memory {
	if mem == nil {
		return nil
	}
	return &memoryWrapper{mem: mem}
}

// memoryWrapper adapts wazero api.Memory to jsvm.Memory.
type memoryWrapper struct {
	mem api.Memory
}

var (
	_ jsvm.Memory      = (*memoryWrapper)(nil)
	_ jsvm.MemorySizer = (*memoryWrapper)(nil)
)

func (m *memoryWrapper) Size() uint32 {
	return m.mem.Size()
}

// Read returns a copy of length bytes at offset.
func (m *memoryWrapper) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *memoryWrapper) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, uint32(len(data)))
	}
	return nil
}

func (m *memoryWrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMarshal, offset, 1)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMarshal, offset, 4)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMarshal, offset, 8)
	}
	return v, nil
}

func (m *memoryWrapper) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, 1)
	}
	return nil
}

func (m *memoryWrapper) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, 4)
	}
	return nil
}

func (m *memoryWrapper) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, 8)
	}
	return nil
}
