// ABOUTME: Tests for the sample FIFO
// ABOUTME: Tests ordering, wraparound and overflow accounting
package engine

import "testing"

func TestFIFOOrder(t *testing.T) {
	f := NewFIFO(8)

	if n := f.Write([]float32{1, 2, 3}); n != 3 {
		t.Fatalf("expected 3 written, got %d", n)
	}
	if f.Available() != 3 || f.Free() != 5 {
		t.Errorf("expected 3 available / 5 free, got %d / %d", f.Available(), f.Free())
	}

	out := make([]float32, 3)
	if n := f.Read(out); n != 3 {
		t.Fatalf("expected 3 read, got %d", n)
	}
	for i, want := range []float32{1, 2, 3} {
		if out[i] != want {
			t.Errorf("index %d: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestFIFOWraparound(t *testing.T) {
	f := NewFIFO(4)
	out := make([]float32, 4)

	f.Write([]float32{1, 2, 3})
	f.Read(out[:2])
	f.Write([]float32{4, 5, 6})

	if f.Available() != 4 {
		t.Fatalf("expected 4 available, got %d", f.Available())
	}

	n := f.Read(out)
	if n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	for i, want := range []float32{3, 4, 5, 6} {
		if out[i] != want {
			t.Errorf("index %d: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestFIFOOverflowDrops(t *testing.T) {
	f := NewFIFO(4)

	if n := f.Write([]float32{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Errorf("expected 4 written, got %d", n)
	}
	if f.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", f.Dropped())
	}
	if n := f.Write([]float32{7}); n != 0 {
		t.Errorf("expected full FIFO to accept nothing, got %d", n)
	}
	if f.Dropped() != 3 {
		t.Errorf("expected 3 dropped, got %d", f.Dropped())
	}
}

func TestFIFOUnderrunReadsWhatIsThere(t *testing.T) {
	f := NewFIFO(4)
	f.Write([]float32{1})

	out := []float32{9, 9, 9}
	if n := f.Read(out); n != 1 {
		t.Fatalf("expected 1 read, got %d", n)
	}
	if out[0] != 1 || out[1] != 9 {
		t.Errorf("unexpected buffer %v", out)
	}
}

func TestFIFOReset(t *testing.T) {
	f := NewFIFO(4)
	f.Write([]float32{1, 2})
	f.Reset()

	if f.Available() != 0 || f.Free() != 4 {
		t.Errorf("expected empty FIFO after reset, got %d available", f.Available())
	}
}

func TestFIFOZeroCapacity(t *testing.T) {
	f := NewFIFO(0)
	if n := f.Write([]float32{1}); n != 0 {
		t.Errorf("expected 0 written, got %d", n)
	}
	if n := f.Read(make([]float32, 1)); n != 0 {
		t.Errorf("expected 0 read, got %d", n)
	}
}
