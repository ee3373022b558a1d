package tarckpt

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// PAX records attached to every entry. Standard tar readers ignore them.
const (
	paxIndex    = "TARCKPT.index"
	paxBasename = "TARCKPT.basename"
	paxSession  = "TARCKPT.session"
)

// EntryName returns the archive name for a source file stored under index:
// "<index>/<basename>". A positive width zero-pads the index.
func EntryName(index int, source string, width int) string {
	return indexPrefix(index, width) + "/" + filepath.Base(source)
}

func indexPrefix(index, width int) string {
	if width > 0 {
		return fmt.Sprintf("%0*d", width, index)
	}
	return strconv.Itoa(index)
}

// ParseEntryName splits an archive name into its logical index and the
// remainder below the index directory. ok is false for names that do not
// follow the "<index>/<name>" scheme.
func ParseEntryName(name string) (index int, rest string, ok bool) {
	name = strings.TrimPrefix(name, "./")
	prefix, rest, found := strings.Cut(name, "/")
	if !found || rest == "" || prefix == "" {
		return 0, "", false
	}
	for i, r := range prefix {
		if (r < '0' || r > '9') && !(i == 0 && r == '-') {
			return 0, "", false
		}
	}
	index, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", false
	}
	return index, path.Clean(rest), true
}

// nameRegistry hands out names that are unique within one archive. A taken
// name gets a counter suffix: "a.bin", "a.bin-2", "a.bin-3", ... Names are
// compared after index normalization, so "00001/a.bin" and "1/a.bin" are the
// same name; both would extract to the same file.
type nameRegistry struct {
	used map[string]struct{}
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{used: make(map[string]struct{})}
}

// nameKey is the form a name takes once extracted: "<index>/<rest>" with
// the index unpadded. Names outside the scheme are their own key.
func nameKey(name string) string {
	index, rest, ok := ParseEntryName(name)
	if !ok {
		return name
	}
	return strconv.Itoa(index) + "/" + rest
}

// reserve claims name, or the first free suffixed variant of it.
func (r *nameRegistry) reserve(name string) string {
	if _, taken := r.used[nameKey(name)]; !taken {
		r.used[nameKey(name)] = struct{}{}
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "-" + strconv.Itoa(n)
		key := nameKey(candidate)
		if _, taken := r.used[key]; !taken {
			r.used[key] = struct{}{}
			return candidate
		}
	}
}

// release frees a name whose entry never reached the archive.
func (r *nameRegistry) release(name string) {
	delete(r.used, nameKey(name))
}

// mark records a name already present in the archive.
func (r *nameRegistry) mark(name string) {
	r.used[nameKey(name)] = struct{}{}
}
