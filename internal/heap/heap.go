// Package heap implements the interpreter's uniform word-addressed storage.
//
// Every runtime value is an address into a single word array. The first word
// at an address is the value's type tag, the following words are the
// tag-dependent payload. Allocation only bumps; nothing is reclaimed before
// the whole heap is dropped at the end of a run.
package heap

import "encoding/binary"

// Tags of the built-in value representations. User types start at
// FirstTypeTag.
const (
	I32TypeTag      uint64 = 0
	StrTypeTag      uint64 = 1
	StrViewTypeTag  uint64 = 2
	ArrayTypeTag    uint64 = 3
	ConstrTypeTag   uint64 = 4 // constructor closure, e.g. `Option.Some`
	TopFunTypeTag   uint64 = 5 // top-level function closure, e.g. `id`
	AssocFunTypeTag uint64 = 6 // associated function closure, e.g. `Value.toStr`
	FirstTypeTag    uint64 = 7
)

// defaultCapacityWords is the initial capacity of the backing array. The
// reference implementation preallocates 1 GiB up front; we start small and
// let the array grow instead.
const defaultCapacityWords = 1 << 20

// Heap is a linearly-growing word array with a bump pointer. Addresses are
// indices into the array and stay stable when the backing array grows.
//
// Word 0 is reserved so that address 0 is never a live value; the evaluator
// uses 0 as the unobservable placeholder result of value-less constructs.
type Heap struct {
	words []uint64
}

func New() *Heap {
	return NewWithCapacity(defaultCapacityWords)
}

// NewWithCapacity creates a heap whose backing array starts with room for
// the given number of words. The heap still grows past it on demand.
func NewWithCapacity(capacityWords int) *Heap {
	if capacityWords < 1 {
		capacityWords = 1
	}
	words := make([]uint64, 1, capacityWords)
	return &Heap{words: words}
}

// Size returns the number of allocated words, including the reserved word 0.
func (h *Heap) Size() int {
	return len(h.words)
}

// Get reads the word at addr.
func (h *Heap) Get(addr uint64) uint64 {
	return h.words[addr]
}

// Set writes the word at addr.
func (h *Heap) Set(addr, word uint64) {
	h.words[addr] = word
}

// Allocate returns the address of n fresh zeroed words. The caller must
// write the tag into word 0 of the allocation.
func (h *Heap) Allocate(n int) uint64 {
	addr := uint64(len(h.words))
	h.words = append(h.words, make([]uint64, n)...)
	return addr
}

// AllocateTag allocates a single word holding the tag. This is the shape of
// nullary constructor values.
func (h *Heap) AllocateTag(tag uint64) uint64 {
	addr := h.Allocate(1)
	h.words[addr] = tag
	return addr
}

// AllocateI32 boxes a 32-bit integer, sign-extended into the payload word.
func (h *Heap) AllocateI32(i int32) uint64 {
	addr := h.Allocate(2)
	h.words[addr] = I32TypeTag
	h.words[addr+1] = uint64(int64(i))
	return addr
}

// I32 reads the payload of an I32 allocation back as a signed 32-bit value.
func (h *Heap) I32(addr uint64) int32 {
	return int32(h.words[addr+1])
}

// AllocateStr boxes a byte string: a length word followed by the bytes
// packed little-endian, eight per word.
func (h *Heap) AllocateStr(bytes []byte) uint64 {
	addr := h.Allocate(2 + (len(bytes)+7)/8)
	h.words[addr] = StrTypeTag
	h.words[addr+1] = uint64(len(bytes))
	for i := 0; i < len(bytes); i += 8 {
		var buf [8]byte
		copy(buf[:], bytes[i:])
		h.words[addr+2+uint64(i/8)] = binary.LittleEndian.Uint64(buf[:])
	}
	return addr
}

// StrBytes unpacks the bytes of a Str allocation.
func (h *Heap) StrBytes(addr uint64) []byte {
	n := h.words[addr+1]
	bytes := make([]byte, (n+7)/8*8)
	for i := uint64(0); i < n; i += 8 {
		binary.LittleEndian.PutUint64(bytes[i:], h.words[addr+2+i/8])
	}
	return bytes[:n]
}

// AllocateStrView allocates a view over a Str: backing address, byte
// offset, byte length.
func (h *Heap) AllocateStrView(str, offset, length uint64) uint64 {
	addr := h.Allocate(4)
	h.words[addr] = StrViewTypeTag
	h.words[addr+1] = str
	h.words[addr+2] = offset
	h.words[addr+3] = length
	return addr
}

// AllocateStrViewFromStrView allocates a view into another view. The new
// view points straight at the underlying Str, so views never chain.
func (h *Heap) AllocateStrViewFromStrView(view, offset, length uint64) uint64 {
	return h.AllocateStrView(h.words[view+1], h.words[view+2]+offset, length)
}

// StrViewBytes unpacks the bytes a StrView designates.
func (h *Heap) StrViewBytes(addr uint64) []byte {
	str := h.words[addr+1]
	offset := h.words[addr+2]
	length := h.words[addr+3]
	return h.StrBytes(str)[offset : offset+length]
}

// AllocateConstr boxes a constructor closure targeting the given tag.
func (h *Heap) AllocateConstr(tag uint64) uint64 {
	addr := h.Allocate(2)
	h.words[addr] = ConstrTypeTag
	h.words[addr+1] = tag
	return addr
}

// AllocateTopFun boxes a top-level function closure by function index.
func (h *Heap) AllocateTopFun(idx uint64) uint64 {
	addr := h.Allocate(2)
	h.words[addr] = TopFunTypeTag
	h.words[addr+1] = idx
	return addr
}

// AllocateAssocFun boxes an associated function closure: the receiver type
// tag and the function id. Allocated for completeness; calling through it is
// not supported by the evaluator.
func (h *Heap) AllocateAssocFun(tyTag, funID uint64) uint64 {
	addr := h.Allocate(3)
	h.words[addr] = AssocFunTypeTag
	h.words[addr+1] = tyTag
	h.words[addr+2] = funID
	return addr
}
