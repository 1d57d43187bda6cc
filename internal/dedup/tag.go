package dedup

import (
	"fmt"
	"slices"
)

// MaxTrace caps the number of per-note trace lines ApplyTag accumulates,
// so very large duplicate sets do not grow unbounded memory.
const MaxTrace = 50

// ApplyTag tags every non-canonical member of each duplicate group.
//
// Buckets with a single member are not duplicates and are skipped. In each
// larger bucket the ids are sorted ascending and the smallest id (the
// oldest note) is kept untagged as the canonical member; every other
// member gets tag and is counted. Tagging a note that already carries tag
// still counts, so repeated runs over an unchanged collection report the
// same total.
//
// Each tagged note is persisted immediately, one write per note. A fetch or
// persist failure aborts the pass with the error; writes already made stay
// durable, and because tagging is idempotent at the note level the
// operation is safe to re-run.
func ApplyTag(groups *Groups, tag string, fetch Fetch, persist Persist) (int, []string, error) {
	tagged := 0
	var trace []string

	for _, k := range groups.Keys() {
		ids := groups.Bucket(k)
		if len(ids) <= 1 {
			continue
		}

		sorted := slices.Clone(ids)
		slices.Sort(sorted)

		for _, id := range sorted[1:] {
			n, err := fetch(id)
			if err != nil {
				return tagged, trace, fmt.Errorf("dedup: fetch note %d: %w", id, err)
			}
			n.AddTag(tag)
			if err := persist(n); err != nil {
				return tagged, trace, fmt.Errorf("dedup: persist note %d: %w", id, err)
			}
			tagged++
			if len(trace) < MaxTrace {
				trace = append(trace, fmt.Sprintf("%s: note_id:%d [TAGGED]", groups.display(k), id))
			}
		}
	}

	return tagged, trace, nil
}
