package enginetest

import (
	"github.com/pdflume/pdflume"
	"github.com/pdflume/pdflume/errors"
)

// Memory is a fixed-size flat memory with a bump allocator, standing in for
// a WebAssembly instance's linear memory. Pointer 0 is never handed out so
// the null sentinel stays invalid.
type Memory struct {
	data []byte
	next uint32
}

// NewMemory creates a flat memory of the given size.
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size), next: 16}
}

func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

func (m *Memory) bounds(offset uint32, length int) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return errors.OutOfBounds(offset, int64(length), m.Size())
	}
	return nil
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.bounds(offset, int(length)); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, len(data)); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.bounds(offset, 2); err != nil {
		return 0, err
	}
	return uint16(m.data[offset]) | uint16(m.data[offset+1])<<8, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return uint32(m.data[offset]) | uint32(m.data[offset+1])<<8 |
		uint32(m.data[offset+2])<<16 | uint32(m.data[offset+3])<<24, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	lo, err := m.ReadU32(offset)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadU32(offset + 4)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (m *Memory) WriteU8(offset uint32, v uint8) error {
	if err := m.bounds(offset, 1); err != nil {
		return err
	}
	m.data[offset] = v
	return nil
}

func (m *Memory) WriteU16(offset uint32, v uint16) error {
	return m.Write(offset, []byte{byte(v), byte(v >> 8)})
}

func (m *Memory) WriteU32(offset uint32, v uint32) error {
	return m.Write(offset, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (m *Memory) WriteU64(offset uint32, v uint64) error {
	if err := m.WriteU32(offset, uint32(v)); err != nil {
		return err
	}
	return m.WriteU32(offset+4, uint32(v>>32))
}

// Alloc hands out 8-byte aligned regions; returns the null pointer on
// exhaustion, matching the native malloc contract.
func (m *Memory) Alloc(size uint32) (uint32, error) {
	aligned := (m.next + 7) &^ 7
	if uint64(aligned)+uint64(size) > uint64(len(m.data)) {
		return 0, nil
	}
	m.next = aligned + size
	return aligned, nil
}

func (m *Memory) Free(ptr uint32) error { return nil }

var _ pdflume.Memory = (*Memory)(nil)
var _ pdflume.MemorySizer = (*Memory)(nil)
var _ pdflume.Allocator = (*Memory)(nil)
