package tarckpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryName(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		source string
		width  int
		want   string
	}{
		{"plain", 3, "/tmp/run/model.bin", 0, "3/model.bin"},
		{"relative source", 12, "out/optim.bin", 0, "12/optim.bin"},
		{"padded", 42, "model.bin", 5, "00042/model.bin"},
		{"wider than width", 123456, "model.bin", 5, "123456/model.bin"},
		{"negative index", -1, "final.bin", 0, "-1/final.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntryName(tt.index, tt.source, tt.width))
		})
	}
}

func TestParseEntryName(t *testing.T) {
	tests := []struct {
		name      string
		entry     string
		wantIndex int
		wantRest  string
		wantOK    bool
	}{
		{"plain", "3/a.bin", 3, "a.bin", true},
		{"padded", "00042/a.bin", 42, "a.bin", true},
		{"dot slash", "./7/a.bin", 7, "a.bin", true},
		{"suffixed", "7/a.bin-2", 7, "a.bin-2", true},
		{"nested", "7/sub/a.bin", 7, "sub/a.bin", true},
		{"negative", "-1/a.bin", -1, "a.bin", true},
		{"escaping rest kept for caller", "1/../../etc/passwd", 1, "../../etc/passwd", true},
		{"not numeric", "x/a.bin", 0, "", false},
		{"sign only", "-/a.bin", 0, "", false},
		{"no slash", "3", 0, "", false},
		{"directory only", "3/", 0, "", false},
		{"empty prefix", "/a.bin", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, rest, ok := ParseEntryName(tt.entry)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIndex, index)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestNameRegistry(t *testing.T) {
	r := newNameRegistry()

	assert.Equal(t, "1/a.bin", r.reserve("1/a.bin"))
	assert.Equal(t, "1/a.bin-2", r.reserve("1/a.bin"))
	assert.Equal(t, "1/a.bin-3", r.reserve("1/a.bin"))
	assert.Equal(t, "2/a.bin", r.reserve("2/a.bin"))

	r.release("1/a.bin-2")
	assert.Equal(t, "1/a.bin-2", r.reserve("1/a.bin"))
	assert.Equal(t, "1/a.bin-4", r.reserve("1/a.bin"))

	r.mark("5/b.bin")
	assert.Equal(t, "5/b.bin-2", r.reserve("5/b.bin"))
}

func TestNameRegistry_NormalizesIndex(t *testing.T) {
	r := newNameRegistry()
	r.mark("00001/a.bin")
	r.mark("./00002/b.bin")

	assert.Equal(t, "1/a.bin-2", r.reserve("1/a.bin"))
	assert.Equal(t, "00001/a.bin-3", r.reserve("00001/a.bin"))
	assert.Equal(t, "2/b.bin-2", r.reserve("2/b.bin"))
	assert.Equal(t, "10/a.bin", r.reserve("10/a.bin"))

	r.release("001/a.bin-2")
	assert.Equal(t, "1/a.bin-2", r.reserve("1/a.bin"))

	r.mark("notes.txt")
	assert.Equal(t, "notes.txt-2", r.reserve("notes.txt"))
}
