// Package wirepath translates between the dotted signal-path namespace used
// by applications and the slash-delimited namespace used by the broker wire
// protocol, and navigates nested generic wire values by path.
package wirepath

import (
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToWire converts a dotted application path to its slash-delimited wire form
func ToWire(dotPath string) string {
	return strings.ReplaceAll(dotPath, ".", "/")
}

// ToApp converts a slash-delimited wire path to its dotted application form
func ToApp(slashPath string) string {
	return strings.ReplaceAll(slashPath, "/", ".")
}

// Split breaks a dotted path into its segments. Empty segments produced by
// doubled or leading/trailing separators are discarded, never propagated as
// degenerate path elements.
func Split(dotPath string) []string {
	var segments []string
	for _, seg := range strings.Split(dotPath, ".") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// Join joins segments with the wire separator, skipping empty segments
func Join(segments []string) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// accessField looks up a field by key, retrying with the key's dots replaced
// by slashes. Some brokers store compound keys with embedded wire
// separators.
func accessField(st *structpb.Struct, key string) *structpb.Value {
	if v, ok := st.Fields[key]; ok {
		return v
	}
	if alt := strings.ReplaceAll(key, ".", "/"); alt != key {
		if v, ok := st.Fields[alt]; ok {
			return v
		}
	}
	return nil
}

// LocateLeaf walks root one dotted-path segment at a time and returns the
// leaf value the path names, or nil when the path is not present. When a
// segment is missing at a struct level, the remaining segments are retried
// as a single slash-joined compound key. A non-struct root, or an empty
// path, returns root unchanged (scalar passthrough).
func LocateLeaf(root *structpb.Value, dotPath string) *structpb.Value {
	if root == nil {
		return nil
	}
	segments := Split(dotPath)
	if len(segments) == 0 || root.GetStructValue() == nil {
		return root
	}

	current := root
	for i, segment := range segments {
		st := current.GetStructValue()
		if st == nil {
			// Ran out of structure with segments still unconsumed
			return nil
		}
		next := accessField(st, segment)
		if next == nil {
			next = accessField(st, strings.Join(segments[i:], "/"))
			if next != nil {
				return next
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// Leaf is one flattened (path, value) pair produced by CollectLeaves
type Leaf struct {
	Path  string
	Value *structpb.Value
}

// CollectLeaves flattens a nested struct into its non-struct leaves, each
// keyed by the slash-joined traversal path. Every field of every nested
// struct is visited exactly once; emission order follows Go map iteration
// and is not stable. Lists are terminal leaves and are not descended into.
// A non-struct root yields no leaves.
func CollectLeaves(root *structpb.Value) []Leaf {
	var leaves []Leaf
	var walk func(v *structpb.Value, path []string)
	walk = func(v *structpb.Value, path []string) {
		if st := v.GetStructValue(); st != nil {
			for key, nested := range st.Fields {
				walk(nested, append(path, key))
			}
			return
		}
		if len(path) > 0 {
			leaves = append(leaves, Leaf{Path: Join(path), Value: v})
		}
	}
	walk(root, nil)
	return leaves
}
