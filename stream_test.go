package blade

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamMatchesBufferedRender(t *testing.T) {
	e := testEngine(map[string]string{
		"p": `<ul>@foreach ($items as $i)<li>{{ $i }}</li>@endforeach</ul>`,
	})
	items := make([]int, 500)
	for i := range items {
		items[i] = i
	}
	data := map[string]any{"items": items}
	want := render(t, e, "p", data)

	var got bytes.Buffer
	chunks := 0
	for chunk := range e.RenderToStream(context.Background(), "p", data) {
		require.NoError(t, chunk.Err)
		got.Write(chunk.Bytes)
		chunks++
	}
	assert.Equal(t, want, got.String())
	assert.Greater(t, chunks, 1, "large output should arrive in multiple chunks")
}

func TestStreamLazyChannelSequence(t *testing.T) {
	e := testEngine(map[string]string{
		"p": `@foreach ($feed as $item){{ $item }};@endforeach`,
	})
	feed := make(chan string, 3)
	feed <- "a"
	feed <- "b"
	feed <- "c"
	close(feed)

	var got bytes.Buffer
	for chunk := range e.RenderToStream(context.Background(), "p", map[string]any{"feed": feed}) {
		require.NoError(t, chunk.Err)
		got.Write(chunk.Bytes)
	}
	assert.Equal(t, "a;b;c;", got.String())
}

func TestStreamErrorBeforeFirstChunk(t *testing.T) {
	e := testEngine(map[string]string{"p": `@include('missing')`})
	var sawErr error
	for chunk := range e.RenderToStream(context.Background(), "p", nil) {
		if chunk.Err != nil {
			sawErr = chunk.Err
		}
	}
	require.Error(t, sawErr)
	var te *Error
	assert.ErrorAs(t, sawErr, &te)
}

func TestStreamErrorAfterFlushDegradesToMarker(t *testing.T) {
	e := testEngine(map[string]string{
		"p": `{{ $pad }}{{ boom }}`,
	})
	e.Funcs(map[string]any{"boom": func() (string, error) {
		return "", errors.New("mid-render failure")
	}})
	data := map[string]any{"pad": strings.Repeat("x", 4096)}

	var got bytes.Buffer
	var sawErr error
	for chunk := range e.RenderToStream(context.Background(), "p", data) {
		if chunk.Err != nil {
			sawErr = chunk.Err
		}
		got.Write(chunk.Bytes)
	}
	assert.NoError(t, sawErr, "post-flush failures must not surface as chunk errors")
	assert.True(t, strings.HasSuffix(got.String(), errorMarker))
	assert.Contains(t, got.String(), "xxxx")
}

func TestStreamCancelledContext(t *testing.T) {
	e := testEngine(map[string]string{"p": strings.Repeat("y", 8192)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range e.RenderToStream(ctx, "p", nil) {
		count++
	}
	assert.Zero(t, count)
}

func TestStreamCancelledContextSuppressesErrorChunk(t *testing.T) {
	// Failures before the first chunk must not block on an abandoned
	// consumer; a cancelled context drops the error chunk entirely.
	e := testEngine(map[string]string{"p": `@include('missing')`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range e.RenderToStream(ctx, "p", nil) {
		count++
	}
	assert.Zero(t, count)
}

func TestRenderStreamWriter(t *testing.T) {
	e := testEngine(map[string]string{"p": `Hello {{ $name }}`})
	var buf bytes.Buffer
	require.NoError(t, e.RenderStream(context.Background(), &buf, "p", map[string]any{"name": "Ada"}))
	assert.Equal(t, "Hello Ada", buf.String())
}

func TestRenderStreamFlushes(t *testing.T) {
	e := testEngine(map[string]string{"p": strings.Repeat("z", 6000)})
	w := &flushRecorder{}
	require.NoError(t, e.RenderStream(context.Background(), w, "p", nil))
	assert.Equal(t, 6000, w.buf.Len())
	assert.Greater(t, w.flushes, 0)
}

type flushRecorder struct {
	buf     bytes.Buffer
	flushes int
}

func (f *flushRecorder) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *flushRecorder) Flush()                      { f.flushes++ }
