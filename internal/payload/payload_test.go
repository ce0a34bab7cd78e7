package payload

import "testing"

func TestNewRejectsNonPositiveRange(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("New(0): expected error, got nil")
	}
	if _, err := New(-1); err == nil {
		t.Fatalf("New(-1): expected error, got nil")
	}
}

func TestNextEndsInLineSeparator(t *testing.T) {
	g, err := New(8)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	for i := 0; i < 100; i++ {
		b := g.Next()
		if len(b.Data) == 0 {
			t.Fatalf("Next: empty block")
		}
		if b.Data[len(b.Data)-1] != LineSeparator {
			t.Fatalf("Next: block %q does not end in the line separator", b.Data)
		}
		if len(b.Data) > 8 {
			t.Fatalf("Next: block length %d exceeds range 8", len(b.Data))
		}
	}
}

func TestNextSingleByteRange(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	b := g.Next()
	if len(b.Data) != 1 || b.Data[0] != LineSeparator {
		t.Fatalf("Next: range-1 block should be exactly the separator, got %q", b.Data)
	}
}

func TestCloseReleasesBuffer(t *testing.T) {
	g, err := New(4)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	g.Close()
	if g.buf != nil {
		t.Fatalf("Close: buf not released")
	}
}
