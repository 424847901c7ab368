package blade

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// streamChunkSize is the buffered output threshold before a chunk is
// handed to the consumer.
const streamChunkSize = 2048

// Chunk is one piece of streamed output. Err is only ever set before
// the first chunk has been delivered; once output has been flushed an
// error degrades to a visible marker inside the stream instead.
type Chunk struct {
	Bytes []byte
	Err   error
}

// errorMarker is appended to a stream that fails after output has
// already been flushed, since the response can no longer be retried or
// redirected.
const errorMarker = "<!-- blade: render aborted -->"

// RenderToStream renders lazily: chunks arrive on the returned channel
// as the template produces output, so long loops flush progressively.
// The channel closes when rendering completes; cancelling ctx severs
// the stream.
func (e *Engine) RenderToStream(ctx context.Context, entry string, data any) <-chan Chunk {
	ch := make(chan Chunk)
	sendErr := func(err error) {
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- Chunk{Err: err}:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(ch)

		prog, err := e.program(entry)
		if err != nil {
			sendErr(e.fail(entry, err))
			return
		}
		rs := newRenderState(e, prog)
		rs.streamed = true
		scope := e.buildScope(data, rs)
		if err := e.resolveAsync(ctx, scope); err != nil {
			sendErr(e.fail(entry, err))
			return
		}

		w := &chunkWriter{ch: ch, ctx: ctx}
		if err := prog.tmpl.Execute(w, scope); err != nil {
			if errors.Is(err, context.Canceled) || w.ctx.Err() != nil {
				return
			}
			if w.delivered {
				e.log.Error("stream render failed after flush",
					"template", prog.Entry, "err", err)
				w.send([]byte(errorMarker))
				return
			}
			sendErr(e.fail(entry, err))
			return
		}
		w.flush()
	}()
	return ch
}

// RenderStream renders into w, flushing at chunk boundaries when w is
// an http.Flusher. An error after the first flush appends a visible
// marker and reports nothing to the transport, which cannot be rewound.
func (e *Engine) RenderStream(ctx context.Context, w io.Writer, entry string, data any) error {
	flushed := false
	for chunk := range e.RenderToStream(ctx, entry, data) {
		if chunk.Err != nil {
			if !flushed {
				return chunk.Err
			}
			_, _ = w.Write([]byte(errorMarker))
			return nil
		}
		if _, err := w.Write(chunk.Bytes); err != nil {
			return err
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		flushed = true
	}
	return nil
}

// chunkWriter accumulates template output and delivers it in chunks,
// aborting execution when the consumer's context is cancelled.
type chunkWriter struct {
	ch        chan Chunk
	ctx       context.Context
	buf       []byte
	delivered bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) >= streamChunkSize {
		if err := w.flush(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *chunkWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	w.buf = w.buf[:0]
	return w.send(out)
}

func (w *chunkWriter) send(b []byte) error {
	select {
	case w.ch <- Chunk{Bytes: b}:
		w.delivered = true
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}
