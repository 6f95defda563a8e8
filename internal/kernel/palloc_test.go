package kernel

import "testing"

func TestPoolExhaustionAndReuse(t *testing.T) {
	p := newPool(2)

	a := p.allocZeroed()
	b := p.allocZeroed()
	if a == nil || b == nil {
		t.Fatal("allocation failed with free slots")
	}
	if p.allocZeroed() != nil {
		t.Fatal("allocation succeeded on an exhausted pool")
	}
	if got := p.used(); got != 2 {
		t.Fatalf("used = %d, want 2", got)
	}

	p.freePage(a)
	if got := p.used(); got != 1 {
		t.Fatalf("used after free = %d, want 1", got)
	}
	if p.allocZeroed() == nil {
		t.Fatal("allocation failed after a free")
	}
}

func TestPoolDoubleFreePanics(t *testing.T) {
	p := newPool(1)
	pg := p.allocZeroed()
	p.freePage(pg)

	defer func() {
		if recover() == nil {
			t.Fatal("double free did not panic")
		}
	}()
	p.freePage(pg)
}
