package mem

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/pdflume/pdflume"
	"github.com/pdflume/pdflume/errors"
)

// Arena is a tracked allocator over one engine instance's linear memory.
//
// Every live allocation pointer is present in the tracking set; freeing an
// untracked or already-freed pointer is a diagnostic no-op, never a crash.
// Arena methods are safe for concurrent use, though the engine instance
// they serve is not.
type Arena struct {
	mem    pdflume.Memory
	sizer  pdflume.MemorySizer
	alloc  pdflume.Allocator
	allocs map[uint32]uint32 // ptr -> size
	mu     sync.Mutex
}

// NewArena creates an arena over the given memory and native allocator.
func NewArena(memory pdflume.Memory, sizer pdflume.MemorySizer, alloc pdflume.Allocator) *Arena {
	return &Arena{
		mem:    memory,
		sizer:  sizer,
		alloc:  alloc,
		allocs: make(map[uint32]uint32),
	}
}

// Memory returns the underlying linear memory view.
func (a *Arena) Memory() pdflume.Memory {
	return a.mem
}

// Alloc allocates size bytes in linear memory and tracks the allocation.
func (a *Arena) Alloc(size int) (uint32, error) {
	if size <= 0 {
		return 0, errors.AllocationFailed(int64(size))
	}
	if uint64(size) > math.MaxUint32 {
		return 0, errors.AllocationFailed(int64(size))
	}

	ptr, err := a.alloc.Alloc(uint32(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindAllocationFailed, err, "native allocator")
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(int64(size))
	}

	a.mu.Lock()
	a.allocs[ptr] = uint32(size)
	a.mu.Unlock()

	return ptr, nil
}

// Free releases a tracked allocation. Freeing the null pointer is a no-op;
// freeing an untracked pointer logs a warning and is otherwise a no-op.
func (a *Arena) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}

	a.mu.Lock()
	_, tracked := a.allocs[ptr]
	if tracked {
		delete(a.allocs, ptr)
	}
	a.mu.Unlock()

	if !tracked {
		Logger().Warn("free of untracked pointer", zap.Uint32("ptr", ptr))
		return nil
	}

	return a.alloc.Free(ptr)
}

// FreeAll releases every tracked allocation. Used only during full teardown
// of the owning engine instance.
func (a *Arena) FreeAll() {
	a.mu.Lock()
	ptrs := make([]uint32, 0, len(a.allocs))
	for ptr := range a.allocs {
		ptrs = append(ptrs, ptr)
	}
	a.allocs = make(map[uint32]uint32)
	a.mu.Unlock()

	for _, ptr := range ptrs {
		if err := a.alloc.Free(ptr); err != nil {
			Logger().Warn("free during teardown failed", zap.Uint32("ptr", ptr), zap.Error(err))
		}
	}
}

// ActiveAllocations returns the number of live tracked allocations.
func (a *Arena) ActiveAllocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocs)
}

// CopyIn allocates a region and copies data into it.
func (a *Arena) CopyIn(data []byte) (uint32, error) {
	ptr, err := a.Alloc(len(data))
	if err != nil {
		return 0, err
	}
	if err := a.mem.Write(ptr, data); err != nil {
		_ = a.Free(ptr)
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "copy in")
	}
	return ptr, nil
}

// CopyOut reads length bytes starting at ptr. The length is validated
// against the current memory size, not just the uint32 range.
func (a *Arena) CopyOut(ptr uint32, length int) ([]byte, error) {
	if length < 0 {
		return nil, errors.OutOfBounds(ptr, int64(length), a.sizer.Size())
	}
	if length == 0 {
		return []byte{}, nil
	}
	if err := a.checkBounds(ptr, uint64(length)); err != nil {
		return nil, err
	}

	data, err := a.mem.Read(ptr, uint32(length))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "copy out")
	}
	return data, nil
}

// ReadU32 reads a 32-bit integer, validating alignment and bounds.
func (a *Arena) ReadU32(ptr uint32) (uint32, error) {
	if err := a.checkAccess(ptr, 4); err != nil {
		return 0, err
	}
	v, err := a.mem.ReadU32(ptr)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "read u32")
	}
	return v, nil
}

// WriteU32 writes a 32-bit integer, validating alignment and bounds.
func (a *Arena) WriteU32(ptr uint32, value uint32) error {
	if err := a.checkAccess(ptr, 4); err != nil {
		return err
	}
	if err := a.mem.WriteU32(ptr, value); err != nil {
		return errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "write u32")
	}
	return nil
}

// ReadF32 reads a 32-bit float, validating alignment and bounds.
func (a *Arena) ReadF32(ptr uint32) (float32, error) {
	bits, err := a.ReadU32(ptr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// WriteF32 writes a 32-bit float, validating alignment and bounds.
func (a *Arena) WriteF32(ptr uint32, value float32) error {
	return a.WriteU32(ptr, math.Float32bits(value))
}

// ReadF64 reads a 64-bit float, validating alignment and bounds.
func (a *Arena) ReadF64(ptr uint32) (float64, error) {
	if err := a.checkAccess(ptr, 8); err != nil {
		return 0, err
	}
	bits, err := a.mem.ReadU64(ptr)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "read f64")
	}
	return math.Float64frombits(bits), nil
}

// WriteF64 writes a 64-bit float, validating alignment and bounds.
func (a *Arena) WriteF64(ptr uint32, value float64) error {
	if err := a.checkAccess(ptr, 8); err != nil {
		return err
	}
	if err := a.mem.WriteU64(ptr, math.Float64bits(value)); err != nil {
		return errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "write f64")
	}
	return nil
}

func (a *Arena) checkAccess(ptr, width uint32) error {
	if ptr%width != 0 {
		return errors.MisalignedAccess(ptr, width)
	}
	return a.checkBounds(ptr, uint64(width))
}

func (a *Arena) checkBounds(ptr uint32, length uint64) error {
	size := a.sizer.Size()
	if uint64(ptr)+length > uint64(size) {
		return errors.OutOfBounds(ptr, int64(length), size)
	}
	return nil
}
