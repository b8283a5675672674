package proximity

import "testing"

func TestBetweenInRangeDistances(t *testing.T) {
	for _, d := range []uint32{1, 2, 7} {
		got := Between(100, 100+d)
		if got != d {
			t.Fatalf("expected distance %d, got %d", d, got)
		}
		if !InRange(got) {
			t.Fatalf("expected %d to be in range", got)
		}
	}
}

func TestBetweenOutOfRange(t *testing.T) {
	got := Between(100, 200)
	if InRange(got) {
		t.Fatalf("expected distance 100 to be out of range, got %d", got)
	}
}

func TestBetweenIsSymmetricMagnitude(t *testing.T) {
	a := Between(10, 13)
	b := Between(13, 10)
	if a != b {
		t.Fatalf("expected |p1-p2| symmetry, got %d vs %d", a, b)
	}
}

func TestInRangeBoundaries(t *testing.T) {
	if InRange(0) {
		t.Fatal("0 should be out of range (same position is not a proximity pair)")
	}
	if !InRange(1) || !InRange(7) {
		t.Fatal("1 and 7 should be in range")
	}
	if InRange(8) {
		t.Fatal("8 (the sentinel) should be out of range")
	}
}
