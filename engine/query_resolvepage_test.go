package engine

import "testing"

func ptr(v int64) *int64 { return &v }

func TestResolvePageDefaults(t *testing.T) {
	p, err := ResolvePage(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != 0 || p.Limit != DefaultPageSize {
		t.Fatalf("expected start=0 limit=%d, got %+v", DefaultPageSize, p)
	}
}

func TestResolvePageClampsLimitToMax(t *testing.T) {
	p, err := ResolvePage(nil, ptr(10000), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != MaxPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", MaxPageSize, p.Limit)
	}
}

func TestResolvePageClampsLimitToMaxWithInterval(t *testing.T) {
	p, err := ResolvePage(nil, ptr(10000), ptr(3600), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != MaxPageSizeWithInterval {
		t.Fatalf("expected limit clamped to %d with an interval set, got %d", MaxPageSizeWithInterval, p.Limit)
	}
	if p.Interval != 3600 {
		t.Fatalf("expected interval 3600, got %d", p.Interval)
	}
}

func TestResolvePageNegativeStartWithoutTipIsEmpty(t *testing.T) {
	p, err := ResolvePage(ptr(-5), nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Empty || p.Limit != 0 {
		t.Fatalf("expected an empty page for a negative start with no backwards anchor, got %+v", p)
	}
}

func TestResolvePageNegativeStartAnchorsAtTip(t *testing.T) {
	tip := func() (int64, error) { return 100, nil }

	p, err := ResolvePage(ptr(-10), nil, nil, tip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != 90 {
		t.Fatalf("expected start anchored at tip-10=90, got %d", p.Start)
	}
}

func TestResolvePageNegativeStartClampsBelowZero(t *testing.T) {
	tip := func() (int64, error) { return 3, nil }

	p, err := ResolvePage(ptr(-10), nil, nil, tip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != 0 {
		t.Fatalf("expected start clamped to 0 when tip+start is negative, got %d", p.Start)
	}
}

func TestResolvePageDefaultStartIsBackwardsAnchoredWhenTipGiven(t *testing.T) {
	tip := func() (int64, error) { return 1000, nil }

	p, err := ResolvePage(nil, nil, nil, tip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != int64(1000-DefaultPageSize) {
		t.Fatalf("expected default start to anchor at tip-%d, got %d", DefaultPageSize, p.Start)
	}
}
