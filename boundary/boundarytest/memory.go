package boundarytest

import (
	"encoding/binary"
	"strconv"

	"github.com/wippyai/jsvm/errors"
)

// linearMemory implements jsvm.Memory over the engine's byte slice.
type linearMemory struct {
	e *Engine
}

// Size implements jsvm.MemorySizer.
func (m linearMemory) Size() uint32 {
	return uint32(len(m.e.mem))
}

func (m linearMemory) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.e.mem)) {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, offset, length)
	}
	return m.e.mem[offset:end], nil
}

func (m linearMemory) Read(offset, length uint32) ([]byte, error) {
	b, err := m.span(offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b)
	return out, nil
}

func (m linearMemory) Write(offset uint32, data []byte) error {
	b, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m linearMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m linearMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m linearMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m linearMemory) WriteU8(offset uint32, v uint8) error {
	b, err := m.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (m linearMemory) WriteU32(offset uint32, v uint32) error {
	b, err := m.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (m linearMemory) WriteU64(offset uint32, v uint64) error {
	b, err := m.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// arrayIndex parses a canonical non-negative integer property key.
func arrayIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
