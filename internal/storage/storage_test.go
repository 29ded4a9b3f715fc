package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC) }
	return s
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_report_v1.pdf", SanitizeFilename("my report/v1.pdf"))
	assert.Equal(t, "a_b_c.txt", SanitizeFilename(`a\b c.txt`))
	assert.Equal(t, "отчёт.pdf", SanitizeFilename("отчёт.pdf"))
}

func TestSave_LayoutAndContent(t *testing.T) {
	s := newTestStore(t)

	rel, n, err := s.Save(42, Deliverables, "final build.zip", strings.NewReader("payload"))
	require.NoError(t, err)

	assert.Equal(t, "uploads/42/deliverables/20240501_123045_123456_final_build.zip", rel)
	assert.Equal(t, int64(7), n)

	full, err := s.Resolve(rel)
	require.NoError(t, err)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "final_build.zip", DisplayName(rel))
}

func TestSave_LargeFileIsStreamed(t *testing.T) {
	s := newTestStore(t)
	body := strings.Repeat("x", 3*chunkSize+17)

	rel, n, err := s.Save(1, Proposals, "big.pdf", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)

	full, _ := s.Resolve(rel)
	info, err := os.Stat(full)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size())
}

func TestSave_SameNameInSameMicrosecond(t *testing.T) {
	s := newTestStore(t)

	var rels []string
	for _, body := range []string{"one", "two", "three"} {
		rel, _, err := s.Save(1, Avatar, "me.png", strings.NewReader(body))
		require.NoError(t, err)
		rels = append(rels, rel)
	}
	assert.Equal(t, []string{
		"uploads/1/avatar/20240501_123045_123456_me.png",
		"uploads/1/avatar/20240501_123045_123457_me.png",
		"uploads/1/avatar/20240501_123045_123458_me.png",
	}, rels)
	assert.Equal(t, "me.png", DisplayName(rels[2]))

	first, err := s.Resolve(rels[0])
	require.NoError(t, err)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, _, err = s.Save(1, Avatar, "me.png", strings.NewReader("four"))
	assert.ErrorIs(t, err, os.ErrExist)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSave_FailedCopyLeavesNoFile(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Save(3, Deliverables, "broken.zip", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(s.Root, "3", "deliverables"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	rel, _, err := s.Save(5, Proposals, "bid.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(rel))
	full, _ := s.Resolve(rel)
	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Remove(rel))
}

func TestResolve_RejectsUnsafePaths(t *testing.T) {
	s := New("/srv/uploads")

	for _, p := range []string{
		"uploads/../../etc/passwd",
		"../uploads/1/avatar/a.png",
		"uploads/1/../../secret",
		`uploads\..\..\etc\passwd`,
		"/etc/passwd",
		"/srv/uploads/1/avatar/a.png",
		"etc/passwd",
		"uploads",
		"uploads/",
		"",
	} {
		_, err := s.Resolve(p)
		assert.ErrorIs(t, err, ErrUnsafePath, p)
	}
}

func TestResolve_MapsUnderRoot(t *testing.T) {
	s := New("/srv/uploads")

	full, err := s.Resolve("uploads/7/proposals/20240101_000000_000000_bid.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/uploads", "7", "proposals", "20240101_000000_000000_bid.pdf"), full)
}

func TestParse(t *testing.T) {
	owner, cat, err := Parse("uploads/12/deliverables/x.zip")
	require.NoError(t, err)
	assert.Equal(t, uint(12), owner)
	assert.Equal(t, Deliverables, cat)

	_, _, err = Parse("uploads/abc/deliverables/x.zip")
	assert.Error(t, err)
	_, _, err = Parse("files/1/avatar/x.png")
	assert.Error(t, err)
}
