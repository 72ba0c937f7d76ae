package heap

import (
	"bytes"
	"testing"
)

func TestAllocateI32RoundTrip(t *testing.T) {
	tests := []int32{0, 1, -1, 42, -42, 1<<31 - 1, -(1 << 31)}

	h := New()
	for _, want := range tests {
		addr := h.AllocateI32(want)
		if tag := h.Get(addr); tag != I32TypeTag {
			t.Errorf("AllocateI32(%d) tag = %d, want %d", want, tag, I32TypeTag)
		}
		if got := h.I32(addr); got != want {
			t.Errorf("I32 round trip = %d, want %d", got, want)
		}
	}
}

func TestAllocateStrRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"a",
		"hello",
		"1234567",  // one word, one byte short of full
		"12345678", // exactly one word of bytes
		"123456789",
		"hello world, this spans several words",
		"bytes \x00\xff\x80 in the middle",
	}

	h := New()
	for _, want := range tests {
		addr := h.AllocateStr([]byte(want))
		if tag := h.Get(addr); tag != StrTypeTag {
			t.Errorf("AllocateStr(%q) tag = %d, want %d", want, tag, StrTypeTag)
		}
		if got := h.StrBytes(addr); !bytes.Equal(got, []byte(want)) {
			t.Errorf("StrBytes = %q, want %q", got, want)
		}
		if n := h.Get(addr + 1); n != uint64(len(want)) {
			t.Errorf("length word = %d, want %d", n, len(want))
		}
	}
}

func TestAllocateStrView(t *testing.T) {
	h := New()
	str := h.AllocateStr([]byte("hello world"))

	view := h.AllocateStrView(str, 6, 5)
	if tag := h.Get(view); tag != StrViewTypeTag {
		t.Fatalf("view tag = %d, want %d", tag, StrViewTypeTag)
	}
	if got := h.StrViewBytes(view); string(got) != "world" {
		t.Fatalf("StrViewBytes = %q, want %q", got, "world")
	}
	if backing := h.Get(view + 1); backing != str {
		t.Fatalf("view backing = %d, want %d", backing, str)
	}

	// A view over a view points straight at the underlying Str.
	sub := h.AllocateStrViewFromStrView(view, 1, 3)
	if got := h.StrViewBytes(sub); string(got) != "orl" {
		t.Fatalf("sub view bytes = %q, want %q", got, "orl")
	}
	if backing := h.Get(sub + 1); backing != str {
		t.Fatalf("sub view backing = %d, want %d", backing, str)
	}
}

func TestAllocateTagAndClosures(t *testing.T) {
	h := New()

	nullary := h.AllocateTag(9)
	if got := h.Get(nullary); got != 9 {
		t.Errorf("AllocateTag(9) word = %d", got)
	}

	constr := h.AllocateConstr(12)
	if h.Get(constr) != ConstrTypeTag || h.Get(constr+1) != 12 {
		t.Errorf("AllocateConstr: tag %d target %d", h.Get(constr), h.Get(constr+1))
	}

	topFun := h.AllocateTopFun(3)
	if h.Get(topFun) != TopFunTypeTag || h.Get(topFun+1) != 3 {
		t.Errorf("AllocateTopFun: tag %d idx %d", h.Get(topFun), h.Get(topFun+1))
	}

	assocFun := h.AllocateAssocFun(7, 1)
	if h.Get(assocFun) != AssocFunTypeTag || h.Get(assocFun+1) != 7 || h.Get(assocFun+2) != 1 {
		t.Errorf("AllocateAssocFun: %d %d %d", h.Get(assocFun), h.Get(assocFun+1), h.Get(assocFun+2))
	}
}

func TestAddressZeroReserved(t *testing.T) {
	h := New()
	if addr := h.Allocate(1); addr == 0 {
		t.Fatal("first allocation got address 0")
	}
	if h.Size() < 2 {
		t.Fatalf("Size = %d, want at least 2", h.Size())
	}
}

func TestGrowthKeepsAddressesStable(t *testing.T) {
	// Start with a tiny capacity so the backing array has to grow many
	// times.
	h := NewWithCapacity(1)

	addrs := make([]uint64, 0, 100)
	for i := int32(0); i < 100; i++ {
		addrs = append(addrs, h.AllocateI32(i))
	}
	str := h.AllocateStr([]byte("still here"))

	for i, addr := range addrs {
		if got := h.I32(addr); got != int32(i) {
			t.Fatalf("after growth, I32 at %d = %d, want %d", addr, got, i)
		}
	}
	if got := h.StrBytes(str); string(got) != "still here" {
		t.Fatalf("after growth, StrBytes = %q", got)
	}
}

func TestAllocateZeroesAndCallerTags(t *testing.T) {
	h := New()
	addr := h.Allocate(3)
	for i := uint64(0); i < 3; i++ {
		if got := h.Get(addr + i); got != 0 {
			t.Fatalf("fresh word %d = %d, want 0", i, got)
		}
	}
	h.Set(addr, ArrayTypeTag)
	h.Set(addr+1, 0)
	if h.Get(addr) != ArrayTypeTag {
		t.Fatal("tag write lost")
	}
}
