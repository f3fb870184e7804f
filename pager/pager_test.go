package pager

import (
	"path/filepath"
	"testing"
)

func openTestPager(t *testing.T) *Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pagedkv")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOpenFreshFileHasZeroConfig(t *testing.T) {
	p := openTestPager(t)
	if p.RootPage() != 0 {
		t.Errorf("fresh file should have unset root, got %d", p.RootPage())
	}
}

func TestAllocPageBumpsWhenNoFreeList(t *testing.T) {
	p := openTestPager(t)
	first, err := p.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	second, err := p.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if second-first != PageSize {
		t.Errorf("expected consecutive pages PageSize apart, got %d and %d", first, second)
	}
}

func TestAllocPagePopsFreeListHead(t *testing.T) {
	p := openTestPager(t)
	o1, _ := p.AllocPage()
	if err := p.FreePage(o1); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if p.cfg.FirstFreePage != o1 {
		t.Fatalf("expected free-list head %d, got %d", o1, p.cfg.FirstFreePage)
	}
	got, err := p.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if got != o1 {
		t.Errorf("expected freed page to be reused, got %d want %d", got, o1)
	}
	if p.cfg.FirstFreePage != 0 {
		t.Errorf("free-list should be empty after popping its only page, got %d", p.cfg.FirstFreePage)
	}
}

func TestFreePageKeepsAscendingOrder(t *testing.T) {
	p := openTestPager(t)
	offsets := make([]Offset, 5)
	for i := range offsets {
		o, err := p.AllocPage()
		if err != nil {
			t.Fatalf("AllocPage: %v", err)
		}
		offsets[i] = o
	}

	// Free in scrambled order: 3, 1, 4, 0, 2 (by index into offsets).
	order := []int{3, 1, 4, 0, 2}
	for _, idx := range order {
		if err := p.FreePage(offsets[idx]); err != nil {
			t.Fatalf("FreePage(%d): %v", offsets[idx], err)
		}
	}

	got := walkFreeList(t, p)
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("free-list not strictly ascending: %v", got)
		}
	}
	if len(got) != len(offsets) {
		t.Fatalf("expected %d free pages, got %d: %v", len(offsets), len(got), got)
	}
}

func TestFreePageAllBeforeExistingHead(t *testing.T) {
	p := openTestPager(t)
	a, _ := p.AllocPage()
	b, _ := p.AllocPage()
	// Free the higher offset first, so the second free must prepend.
	if a > b {
		a, b = b, a
	}
	if err := p.FreePage(b); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if err := p.FreePage(a); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if p.cfg.FirstFreePage != a {
		t.Errorf("expected head %d (the lower offset), got %d", a, p.cfg.FirstFreePage)
	}
}

func walkFreeList(t *testing.T, p *Pager) []Offset {
	t.Helper()
	var out []Offset
	cur := p.cfg.FirstFreePage
	seen := map[Offset]bool{}
	for cur != 0 {
		if seen[cur] {
			t.Fatalf("free-list cycle detected at offset %d", cur)
		}
		seen[cur] = true
		out = append(out, cur)
		next, err := p.readNextPointer(cur)
		if err != nil {
			t.Fatalf("readNextPointer(%d): %v", cur, err)
		}
		cur = next
	}
	return out
}

func TestWritePageAllocatesFreshOffset(t *testing.T) {
	p := openTestPager(t)
	pg := new(Page)
	pg.PutByte(0, 7)
	offset, err := p.WritePage(pg)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	readBack, err := p.GetPage(offset)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if readBack[0] != 7 {
		t.Errorf("got %d, want 7", readBack[0])
	}
}

func TestSetRootPagePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "root.pagedkv")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.SetRootPage(5 * PageSize); err != nil {
		t.Fatalf("SetRootPage: %v", err)
	}
	p.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.RootPage() != 5*PageSize {
		t.Errorf("got root %d, want %d", reopened.RootPage(), 5*PageSize)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	p := openTestPager(t)
	blob := []byte("an arbitrary blob stored in a single page")
	offset, err := p.WriteObject(blob)
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	got, err := p.GetObject(offset)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("got %q, want %q", got, blob)
	}
	if err := p.FreeObject(offset); err != nil {
		t.Fatalf("FreeObject: %v", err)
	}
}

func TestWriteObjectRejectsOversizeBlob(t *testing.T) {
	p := openTestPager(t)
	blob := make([]byte, PageSize-PtrSize+1)
	if _, err := p.WriteObject(blob); err == nil {
		t.Fatal("expected ErrBlobTooLarge, got nil")
	}
}

func TestFreePagesDrainsQueueInOrder(t *testing.T) {
	p := openTestPager(t)
	offsets := make([]Offset, 4)
	for i := range offsets {
		o, _ := p.AllocPage()
		offsets[i] = o
	}
	fq := NewFreeQueue()
	fq.Add(offsets[2])
	fq.Add(offsets[0])
	fq.Add(offsets[3])
	if err := p.FreePages(fq); err != nil {
		t.Fatalf("FreePages: %v", err)
	}
	got := walkFreeList(t, p)
	if len(got) != 3 {
		t.Fatalf("expected 3 free pages, got %d: %v", len(got), got)
	}
	want := []Offset{offsets[0], offsets[2], offsets[3]}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("free-list = %v, want %v", got, want)
			break
		}
	}
}
