package parser

import (
	"fmt"
	"strings"
)

const ROOT_ENTRY = 5

// FullPath walks the parent chain of entry id up to the root entry.
// The walk is a bounded loop: a chain longer than MaxDirectoryDepth or
// one that revisits an entry returns a placeholder path together with
// a CycleDetected error. A stale parent reference ends the walk with a
// placeholder component but is not an error.
func (self *PathResolver) FullPath(id uint64) (string, error) {
	cached, pres := self.getCached(id)
	if pres {
		return cached.path, cached.err
	}

	path, err := self.walk(id)
	self.cache.Add(id, &cachedPath{path: path, err: err})
	return path, err
}

func (self *PathResolver) walk(id uint64) (string, error) {
	summary, pres := self.entries[id]
	if !pres {
		return self.join([]string{"<Err>", fmt.Sprintf("<Entry %d missing>", id)}), nil
	}

	// Components are collected leaf first and reversed at the end.
	components := []string{}
	seen := make(map[uint64]bool)
	current := id

	for depth := 0; ; depth++ {
		if depth > self.options.MaxDirectoryDepth || seen[current] {
			return self.cyclePath(id), newParseError(CycleDetected, 0,
				"entry %d: parent chain does not reach the root within %d steps",
				id, depth)
		}
		seen[current] = true

		fn := summary.Primary()
		if fn == nil {
			components = append(components,
				fmt.Sprintf("<Entry %d has no name>", current), "<Err>")
			break
		}
		components = append(components, fn.Name)

		if current == ROOT_ENTRY {
			break
		}

		parent := fn.Parent
		parent_summary, pres := self.entries[parent.Entry]
		if !pres {
			components = append(components,
				fmt.Sprintf("<Parent %d missing>", parent.Entry), "<Err>")
			break
		}

		if parent_summary.Sequence != parent.Sequence {
			components = append(components,
				fmt.Sprintf("<Parent %v-%v need %v>", parent.Entry,
					parent_summary.Sequence, parent.Sequence), "<Err>")
			break
		}

		current = parent.Entry
		summary = parent_summary
	}

	ReverseStringSlice(components)
	return self.join(components), nil
}

func (self *PathResolver) cyclePath(id uint64) string {
	return self.join([]string{"<CycleDetected>", fmt.Sprintf("%d", id)})
}

func (self *PathResolver) join(components []string) string {
	if len(self.options.PrefixComponents) > 0 {
		components = append(CopySlice(self.options.PrefixComponents),
			components...)
	}
	return strings.Join(components, "/")
}

// ResolveParent returns the path of the directory ref points to. If
// the directory slot was reused since ref was written a placeholder
// naming both sequence numbers is returned.
func (self *PathResolver) ResolveParent(ref MftReference) (string, error) {
	summary, pres := self.entries[ref.Entry]
	if !pres {
		return self.join([]string{"<Err>",
			fmt.Sprintf("<Parent %d missing>", ref.Entry)}), nil
	}

	if summary.Sequence != ref.Sequence {
		return self.join([]string{"<Err>",
			fmt.Sprintf("<Parent %v-%v need %v>", ref.Entry,
				summary.Sequence, ref.Sequence)}), nil
	}

	return self.FullPath(ref.Entry)
}

// ResolveChild is the path of a name inside the directory ref.
func (self *PathResolver) ResolveChild(ref MftReference, name string) (string, error) {
	parent, err := self.ResolveParent(ref)
	return parent + "/" + name, err
}

func CopySlice(in []string) []string {
	result := make([]string, len(in))
	copy(result, in)
	return result
}

func ReverseStringSlice(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func CapUint64(v uint64, max uint64) uint64 {
	if v > max {
		return max
	}
	return v
}

func CapInt64(v int64, max int64) int64 {
	if v > max {
		return max
	}
	return v
}
