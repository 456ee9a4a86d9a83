package reconcile

import "sort"

// The source system keeps chat data in two representations: a live mutable
// table and a slower history view. Rows drift between them (processing lag,
// soft deletes), so each cycle decides the authoritative batch by merging the
// two identifier-keyed sets. History wins for every field it supplies; fields
// it lacks fall back to the live value. Pure function, no I/O.

type Provenance int

const (
	LiveOnly Provenance = iota + 1
	HistoryOnly
	Both
)

func (p Provenance) String() string {
	switch p {
	case LiveOnly:
		return "live"
	case HistoryOnly:
		return "history"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Counts is the per-run divergence breakdown, surfaced in sync stats.
type Counts struct {
	LiveOnly    int `json:"live_only"`
	HistoryOnly int `json:"history_only"`
	Both        int `json:"both"`
}

type Record[T any] struct {
	ID         string
	Value      T
	Provenance Provenance
}

// Merge returns the union of both sets as an ordered batch. overlay resolves
// records present in both: it receives (history, live) and returns the merged
// value, with history taking precedence for the fields it carries. less
// orders the output, normally by ascending source timestamp.
func Merge[T any](live, history map[string]T, overlay func(hist, live T) T, less func(a, b Record[T]) bool) ([]Record[T], Counts) {
	out := make([]Record[T], 0, len(live)+len(history))
	var counts Counts

	for id, hv := range history {
		if lv, ok := live[id]; ok {
			counts.Both++
			out = append(out, Record[T]{ID: id, Value: overlay(hv, lv), Provenance: Both})
		} else {
			counts.HistoryOnly++
			out = append(out, Record[T]{ID: id, Value: hv, Provenance: HistoryOnly})
		}
	}
	for id, lv := range live {
		if _, ok := history[id]; ok {
			continue
		}
		counts.LiveOnly++
		out = append(out, Record[T]{ID: id, Value: lv, Provenance: LiveOnly})
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, counts
}

// Index keys a slice by the given identifier function, for feeding Merge.
func Index[T any](items []T, id func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[id(item)] = item
	}
	return out
}
