package signal

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/errors"
)

// Reply is the result of a point read or one decomposed stream update: a
// mapping from signal path to value, plus the raw wire payload it was
// derived from (kept for consumers that need to re-decode with an expected
// kind).
type Reply struct {
	values map[string]*Value
	raw    *structpb.Value
}

// NewReply creates an empty reply
func NewReply() *Reply {
	return &Reply{values: make(map[string]*Value)}
}

// Add inserts a value keyed by its path, replacing any previous entry
func (r *Reply) Add(v *Value) {
	if v == nil {
		return
	}
	r.values[v.Path()] = v
}

// Get returns the value for a path, or a path-not-found error. Absent paths
// are a retrievable condition; callers may legitimately query optional
// fields.
func (r *Reply) Get(path string) (*Value, error) {
	v, ok := r.values[path]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrPathNotFound, path),
			"signal", "Get", "reply lookup")
	}
	return v, nil
}

// Paths returns the sorted paths present in the reply
func (r *Reply) Paths() []string {
	paths := make([]string, 0, len(r.values))
	for p := range r.values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of values in the reply
func (r *Reply) Len() int { return len(r.values) }

// Raw returns the raw wire payload the reply was derived from, if retained
func (r *Reply) Raw() *structpb.Value { return r.raw }

// SetRaw retains the raw wire payload alongside the decoded values
func (r *Reply) SetRaw(raw *structpb.Value) { r.raw = raw }
