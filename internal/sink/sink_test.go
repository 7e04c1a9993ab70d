package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowWriter yields between bytes so unsynchronized callers would interleave.
type slowWriter struct {
	buf bytes.Buffer
}

func (w *slowWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		w.buf.WriteByte(b)
		runtime.Gosched()
	}
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func group(source string, n int) []LinkPair {
	pairs := make([]LinkPair, n)
	for i := range pairs {
		pairs[i] = LinkPair{Source: source, Linked: fmt.Sprintf("%sl%d", source, i)}
	}
	return pairs
}

func TestWriterSink_WritesTabSeparatedLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	err := s.WriteGroup(context.Background(), []LinkPair{
		{Source: "http://a.test/", Linked: "http://a.test/x"},
		{Source: "http://a.test/", Linked: "http://b.test/"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, "http://a.test/\thttp://a.test/x\nhttp://a.test/\thttp://b.test/\n", buf.String())
}

func TestWriterSink_EmptyGroupWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	require.NoError(t, s.WriteGroup(context.Background(), nil))
	assert.Zero(t, buf.Len())
}

func TestWriterSink_ConcurrentGroupsDoNotInterleave(t *testing.T) {
	const groups, perGroup = 20, 5

	w := &slowWriter{}
	s := NewWriterSink(w)

	var wg sync.WaitGroup
	for i := 0; i < groups; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WriteGroup(context.Background(), group(fmt.Sprintf("http://s%d.test/", i), perGroup))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(w.buf.String(), "\n"), "\n")
	require.Len(t, lines, groups*perGroup)

	seen := make(map[string]bool)
	for start := 0; start < len(lines); start += perGroup {
		first := strings.SplitN(lines[start], "\t", 2)
		require.Len(t, first, 2)
		source := first[0]
		assert.False(t, seen[source], "group %s written twice", source)
		seen[source] = true

		for j := 0; j < perGroup; j++ {
			fields := strings.Split(lines[start+j], "\t")
			require.Len(t, fields, 2, "line %q", lines[start+j])
			assert.Equal(t, source, fields[0])
			assert.True(t, strings.HasPrefix(fields[1], source), "line %q mixes groups", lines[start+j])
		}
	}
	assert.Len(t, seen, groups)
}

func TestWriterSink_WriteFailure(t *testing.T) {
	s := NewWriterSink(failingWriter{})

	err := s.WriteGroup(context.Background(), group("http://a.test/", 1))
	require.Error(t, err)

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "write", sinkErr.Op)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWriterSink_CanceledContextCommitsNothing(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WriteGroup(ctx, group("http://a.test/", 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestWriterSink_WriteAfterClose(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.WriteGroup(context.Background(), group("http://a.test/", 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCreate_WritesHeaderAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linked_urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0o644))

	s, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteGroup(context.Background(), []LinkPair{{Source: "http://a.test/", Linked: "http://a.test/x"}}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "source_url\tlinked_url\nhttp://a.test/\thttp://a.test/x\n", string(data))
}

func TestCreate_MissingDirectory(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "out.txt"))
	require.Error(t, err)

	var sinkErr *SinkError
	assert.ErrorAs(t, err, &sinkErr)
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi(NewWriterSink(&a), NewWriterSink(&b))

	require.NoError(t, m.WriteGroup(context.Background(), group("http://a.test/", 2)))
	require.NoError(t, m.Close())

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, 2, strings.Count(a.String(), "\n"))
}

func TestMulti_StopsAtFirstFailure(t *testing.T) {
	var b bytes.Buffer
	m := Multi(NewWriterSink(failingWriter{}), NewWriterSink(&b))

	err := m.WriteGroup(context.Background(), group("http://a.test/", 2))
	require.Error(t, err)
	assert.Zero(t, b.Len())
}
