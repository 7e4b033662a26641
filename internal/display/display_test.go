package display

import "testing"

func TestMemoryClearIsBlack(t *testing.T) {
	m := NewMemory()
	m.DrawText(0, 10, "hello")
	m.Clear()
	img := m.Image()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r != 0 {
				t.Fatalf("pixel (%d,%d) not cleared", x, y)
			}
		}
	}
}

func TestMemoryDrawTextSetsPixels(t *testing.T) {
	m := NewMemory()
	m.Clear()
	m.DrawText(0, 12, "A")
	lit := 0
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			r, _, _, _ := m.Image().At(x, y).RGBA()
			if r != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("expected DrawText to light at least one pixel")
	}
}

func TestMemoryDrawIconUnknownIsNoOp(t *testing.T) {
	m := NewMemory()
	m.Clear()
	m.DrawIcon(0, 0, Icon(999))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			r, _, _, _ := m.Image().At(x, y).RGBA()
			if r != 0 {
				t.Fatal("unknown icon should not draw anything")
			}
		}
	}
}

func TestMemoryDrawIconKnownLightsPixels(t *testing.T) {
	m := NewMemory()
	m.Clear()
	m.DrawIcon(0, 0, IconThermometer)
	lit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			r, _, _, _ := m.Image().At(x, y).RGBA()
			if r != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("expected icon bitmap to light pixels")
	}
}

func TestMemoryFlushCounts(t *testing.T) {
	m := NewMemory()
	if m.Flushes() != 0 {
		t.Fatalf("got %d, want 0", m.Flushes())
	}
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if m.Flushes() != 2 {
		t.Fatalf("got %d, want 2", m.Flushes())
	}
}
