// Package diff computes the change set between records already stored
// locally and the items most recently fetched from an integration.
package diff

// Options configures a comparison between existing records of type E and
// incoming items of type R.
type Options[E, R any] struct {
	// Owned reports whether an existing record belongs to the integration
	// being reconciled. Records that are not owned are invisible to the
	// diff: they are never updated or deleted.
	Owned func(E) bool

	// ExistingKey returns the identity key of an existing record.
	ExistingKey func(E) string

	// IncomingKey returns the identity key of an incoming item. Items
	// reported as not ok (missing required fields) are counted as skipped.
	IncomingKey func(R) (string, bool)

	// Equal reports whether an existing record already reflects the
	// incoming item. Matched pairs that are equal produce no change.
	Equal func(E, R) bool
}

// Update pairs an existing record with the incoming item that supersedes it.
type Update[E, R any] struct {
	Existing E
	Incoming R
}

// Result is the computed change set. Applying ToCreate, ToUpdate and
// ToDelete to the store makes it converge on the incoming snapshot;
// running the same comparison again afterwards yields an empty result.
type Result[E, R any] struct {
	ToCreate []R
	ToUpdate []Update[E, R]
	ToDelete []E

	// Skipped counts incoming items dropped for lacking an identity key.
	Skipped int
}

// Empty reports whether the result contains no changes.
func (r *Result[E, R]) Empty() bool {
	return len(r.ToCreate) == 0 && len(r.ToUpdate) == 0 && len(r.ToDelete) == 0
}

// Compute compares existing records against an incoming snapshot and
// returns the changes needed to converge. Duplicate incoming keys keep the
// first occurrence. Owned existing records absent from the snapshot are
// marked for deletion; records whose Owned reports false are left alone.
func Compute[E, R any](existing []E, incoming []R, opts Options[E, R]) Result[E, R] {
	var res Result[E, R]

	owned := make(map[string]E)
	for _, e := range existing {
		if opts.Owned != nil && !opts.Owned(e) {
			continue
		}
		owned[opts.ExistingKey(e)] = e
	}

	seen := make(map[string]bool, len(incoming))
	matched := make(map[string]bool, len(owned))
	for _, in := range incoming {
		key, ok := opts.IncomingKey(in)
		if !ok {
			res.Skipped++
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		cur, exists := owned[key]
		if !exists {
			res.ToCreate = append(res.ToCreate, in)
			continue
		}
		matched[key] = true
		if !opts.Equal(cur, in) {
			res.ToUpdate = append(res.ToUpdate, Update[E, R]{Existing: cur, Incoming: in})
		}
	}

	// Preserve input order for deletions rather than map order.
	for _, e := range existing {
		if opts.Owned != nil && !opts.Owned(e) {
			continue
		}
		if !matched[opts.ExistingKey(e)] {
			res.ToDelete = append(res.ToDelete, e)
		}
	}

	return res
}
