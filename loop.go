package blade

import (
	"fmt"
	"reflect"
	"sort"
)

// LoopCursor tracks position inside a @foreach body. It is exposed to
// templates as $loop. Count, Remaining and Last are unknown for lazy
// (channel-backed) sequences: Count and Remaining report -1 and Last
// reports false, so separators and similar layout decisions treat every
// lazy element as "not last".
type LoopCursor struct {
	Value     any
	Key       any
	Index     int // 0-based
	Iteration int // 1-based
	Depth     int // 1 for the outermost loop
	Parent    *LoopCursor

	count int // -1 when unknown
}

// Count reports the total number of iterations, or -1 when unknown.
func (l *LoopCursor) Count() int { return l.count }

// Remaining reports iterations left after the current one, or -1 when
// the total is unknown.
func (l *LoopCursor) Remaining() int {
	if l.count < 0 {
		return -1
	}
	return l.count - l.Iteration
}

// First reports whether this is the first iteration.
func (l *LoopCursor) First() bool { return l.Index == 0 }

// Last reports whether this is the final iteration; false when unknown.
func (l *LoopCursor) Last() bool { return l.count >= 0 && l.Iteration == l.count }

// Odd reports whether the 1-based iteration number is odd.
func (l *LoopCursor) Odd() bool { return l.Iteration%2 == 1 }

// Even reports whether the 1-based iteration number is even.
func (l *LoopCursor) Even() bool { return l.Iteration%2 == 0 }

// rootLoop is the cursor value outside any loop.
func rootLoop() *LoopCursor { return nil }

// cursor adapts an iterable value into a sequence of cursors for the
// template executor to range over. Slices, arrays and maps produce a
// counted slice; channels stream lazily with an unknown count.
func cursor(v any, parent *LoopCursor) (any, error) {
	depth := 1
	if parent != nil {
		depth = parent.Depth + 1
	}
	if v == nil {
		return []*LoopCursor{}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]*LoopCursor, n)
		for i := 0; i < n; i++ {
			out[i] = &LoopCursor{
				Value: rv.Index(i).Interface(), Key: i,
				Index: i, Iteration: i + 1, Depth: depth, Parent: parent, count: n,
			}
		}
		return out, nil

	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := make([]*LoopCursor, len(keys))
		for i, k := range keys {
			out[i] = &LoopCursor{
				Value: rv.MapIndex(k).Interface(), Key: k.Interface(),
				Index: i, Iteration: i + 1, Depth: depth, Parent: parent, count: len(keys),
			}
		}
		return out, nil

	case reflect.Chan:
		out := make(chan *LoopCursor)
		go func() {
			defer close(out)
			i := 0
			for {
				item, ok := rv.Recv()
				if !ok {
					return
				}
				out <- &LoopCursor{
					Value: item.Interface(), Key: i,
					Index: i, Iteration: i + 1, Depth: depth, Parent: parent, count: -1,
				}
				i++
			}
		}()
		return out, nil

	default:
		return nil, fmt.Errorf("blade: cannot iterate over %T", v)
	}
}
