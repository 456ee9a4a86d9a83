package reconcile

import (
	"testing"
	"time"
)

type rec struct {
	ID   string
	Name string
	At   time.Time
}

func byTime(a, b Record[rec]) bool {
	if !a.Value.At.Equal(b.Value.At) {
		return a.Value.At.Before(b.Value.At)
	}
	return a.ID < b.ID
}

func overlayRec(hist, live rec) rec {
	out := hist
	if out.Name == "" {
		out.Name = live.Name
	}
	return out
}

func TestMergeUnionCompleteness(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := Index([]rec{
		{ID: "a", Name: "live-a", At: base},
		{ID: "b", Name: "live-b", At: base.Add(time.Minute)},
	}, func(r rec) string { return r.ID })
	history := Index([]rec{
		{ID: "b", Name: "hist-b", At: base.Add(time.Minute)},
		{ID: "c", Name: "hist-c", At: base.Add(2 * time.Minute)},
	}, func(r rec) string { return r.ID })

	out, counts := Merge(live, history, overlayRec, byTime)

	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	if counts.LiveOnly != 1 || counts.HistoryOnly != 1 || counts.Both != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	want := map[string]Provenance{"a": LiveOnly, "b": Both, "c": HistoryOnly}
	for _, r := range out {
		if r.Provenance != want[r.ID] {
			t.Fatalf("record %s: provenance %v, want %v", r.ID, r.Provenance, want[r.ID])
		}
	}
}

func TestMergeHistoryWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := map[string]rec{"x": {ID: "x", Name: "live", At: base}}
	history := map[string]rec{"x": {ID: "x", Name: "hist", At: base}}

	out, _ := Merge(live, history, overlayRec, byTime)
	if len(out) != 1 || out[0].Value.Name != "hist" {
		t.Fatalf("expected history value to win, got %+v", out)
	}
}

func TestMergeOverlayFallsBackToLive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := map[string]rec{"x": {ID: "x", Name: "live", At: base}}
	history := map[string]rec{"x": {ID: "x", At: base}}

	out, _ := Merge(live, history, overlayRec, byTime)
	if out[0].Value.Name != "live" {
		t.Fatalf("expected live fallback for missing history field, got %q", out[0].Value.Name)
	}
}

func TestMergeOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	live := Index([]rec{
		{ID: "late", At: base.Add(time.Hour)},
		{ID: "early", At: base},
	}, func(r rec) string { return r.ID })
	history := Index([]rec{
		{ID: "mid", At: base.Add(30 * time.Minute)},
		{ID: "early2", At: base},
	}, func(r rec) string { return r.ID })

	out, _ := Merge(live, history, overlayRec, byTime)

	wantOrder := []string{"early", "early2", "mid", "late"}
	for i, id := range wantOrder {
		if out[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, out[i].ID, id)
		}
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	out, counts := Merge(nil, nil, overlayRec, byTime)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
	if counts != (Counts{}) {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
}
