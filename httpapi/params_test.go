package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestQueryInt64(t *testing.T) {
	r := httptest.NewRequest("GET", "/?start=-5", nil)
	v := queryInt64(r, "start")
	if v == nil || *v != -5 {
		t.Fatalf("expected -5, got %v", v)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	if queryInt64(r2, "start") != nil {
		t.Fatal("expected nil for a missing parameter")
	}

	r3 := httptest.NewRequest("GET", "/?start=notanumber", nil)
	if queryInt64(r3, "start") != nil {
		t.Fatal("expected nil for an unparseable parameter")
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=50", nil)
	if got := queryInt(r, "limit", 20); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	if got := queryInt(r2, "limit", 20); got != 20 {
		t.Fatalf("expected default 20, got %d", got)
	}
}

func TestQueryConfirmed(t *testing.T) {
	cases := map[string]*bool{
		"true":  boolPtr(true),
		"false": boolPtr(false),
	}
	for raw, want := range cases {
		r := httptest.NewRequest("GET", "/?confirmed="+raw, nil)
		got := queryConfirmed(r)
		if got == nil || *got != *want {
			t.Fatalf("confirmed=%s: expected %v, got %v", raw, *want, got)
		}
	}

	r := httptest.NewRequest("GET", "/", nil)
	if queryConfirmed(r) != nil {
		t.Fatal("expected nil when confirmed is absent")
	}
}

func TestQueryExpand(t *testing.T) {
	r := httptest.NewRequest("GET", "/?expand=block,miner", nil)
	es := queryExpand(r)
	if !es.Has("block") || !es.Has("miner") || es.Has("other") {
		t.Fatalf("unexpected expand set: %+v", es)
	}

	r2 := httptest.NewRequest("GET", "/?expand=*", nil)
	es2 := queryExpand(r2)
	if !es2.Has("anything") {
		t.Fatal("expected expand=* to match any field")
	}

	r3 := httptest.NewRequest("GET", "/", nil)
	es3 := queryExpand(r3)
	if es3.Has("block") {
		t.Fatal("expected an empty expand set to match nothing")
	}
}

func boolPtr(b bool) *bool { return &b }
