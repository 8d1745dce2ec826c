package typed

import "testing"

type pixel struct {
	R, G, B, A uint8
}

func TestValueRoundTrip(t *testing.T) {
	id := "/hrtyped-value"
	owner, err := Value[uint64](true, id)
	if err != nil {
		t.Fatalf("Value owner: %v", err)
	}
	defer owner.Close()
	*owner.Get() = 0xDEADBEEF

	reloadable, err := Value[uint64](false, id)
	if err != nil {
		t.Fatalf("Value reloadable: %v", err)
	}
	defer reloadable.Close()

	if got := *reloadable.Get(); got != 0xDEADBEEF {
		t.Errorf("reloadable sees %#x, want %#x", got, 0xDEADBEEF)
	}

	*reloadable.Get() = 7
	if got := *owner.Get(); got != 7 {
		t.Errorf("owner sees %d after reloadable write, want 7", got)
	}
}

func TestSliceRoundTrip(t *testing.T) {
	id := "/hrtyped-slice"
	const n = 300 * 300

	owner, err := NewSlice[pixel](true, id, n)
	if err != nil {
		t.Fatalf("NewSlice owner: %v", err)
	}
	defer owner.Close()
	if owner.Length() != n {
		t.Fatalf("Length() = %d, want %d", owner.Length(), n)
	}

	fill := pixel{R: 0x00, G: 0xB3, B: 0xFF, A: 0x00}
	buf := owner.Get()
	for i := range buf {
		buf[i] = fill
	}

	reloadable, err := NewSlice[pixel](false, id, n)
	if err != nil {
		t.Fatalf("NewSlice reloadable: %v", err)
	}
	defer reloadable.Close()

	rbuf := reloadable.Get()
	for i, p := range rbuf {
		if p != fill {
			t.Fatalf("element %d = %+v, want %+v", i, p, fill)
		}
	}
}

func TestSliceRejectsNonPositiveLength(t *testing.T) {
	if _, err := NewSlice[uint32](true, "/hrtyped-bad-len", 0); err == nil {
		t.Fatal("NewSlice with length 0: want error")
	}
}
