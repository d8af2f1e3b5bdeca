package calendar

import "testing"

func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i
	}

	p := Paginate(items, 2, 20)
	if len(p.Items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(p.Items))
	}
	if p.Items[0] != 20 {
		t.Fatalf("expected page 2 to start at item 20, got %d", p.Items[0])
	}
	if !p.HasNext || !p.HasPrev {
		t.Fatalf("middle page must have neighbours: next=%v prev=%v", p.HasNext, p.HasPrev)
	}
	if p.Total != 45 {
		t.Fatalf("expected total 45, got %d", p.Total)
	}
}

func TestPaginate_LastPage(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	p := Paginate(items, 2, 3)
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(p.Items))
	}
	if p.HasNext {
		t.Fatalf("last page must not have next")
	}
	if !p.HasPrev {
		t.Fatalf("last page must have prev")
	}
}

func TestPaginate_Defaults(t *testing.T) {
	items := []int{1, 2, 3}

	p := Paginate(items, 0, 0)
	if p.Page != 1 || p.PageSize != 20 {
		t.Fatalf("expected defaults page=1 size=20, got %d/%d", p.Page, p.PageSize)
	}
	if len(p.Items) != 3 {
		t.Fatalf("expected all items, got %d", len(p.Items))
	}
}

func TestPaginate_OutOfRange(t *testing.T) {
	items := []int{1, 2, 3}

	p := Paginate(items, 10, 20)
	if len(p.Items) != 0 {
		t.Fatalf("expected empty page beyond range, got %d items", len(p.Items))
	}
	if p.HasNext {
		t.Fatalf("page beyond range must not have next")
	}
}
