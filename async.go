package blade

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Promise is a pending context value resolved before template execution
// begins. All promises of one render are awaited concurrently; the body
// never executes against an unresolved value.
type Promise interface {
	Await(ctx context.Context) (any, error)
}

// PromiseFunc adapts a function to a Promise.
type PromiseFunc func(ctx context.Context) (any, error)

func (f PromiseFunc) Await(ctx context.Context) (any, error) { return f(ctx) }

type pendingValue struct {
	key     string
	promise Promise
	assign  func(any)
}

// resolveAsync awaits every pending value in the scope concurrently and
// substitutes the results in place. A single failure fails the render
// with that value's key and cause attached; nothing is silently
// replaced with an empty value.
func (e *Engine) resolveAsync(ctx context.Context, scope Scope) error {
	var pendings []pendingValue
	collectPending(map[string]any(scope), "", &pendings)
	if len(pendings) == 0 {
		return nil
	}

	results := make([]any, len(pendings))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pendings {
		i, p := i, p
		g.Go(func() error {
			v, err := p.promise.Await(gctx)
			if err != nil {
				return &Error{Kind: KindAsync, Detail: p.key, Err: err}
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, p := range pendings {
		p.assign(results[i])
	}
	return nil
}

// collectPending walks nested string-keyed maps looking for promise
// values. Reserved engine bindings are skipped.
func collectPending(m map[string]any, prefix string, out *[]pendingValue) {
	for k, v := range m {
		k := k
		if prefix == "" && len(k) > 1 && k[0] == '_' && k[1] == '_' {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case Promise:
			*out = append(*out, pendingValue{key: key, promise: t, assign: func(r any) { m[k] = r }})
		case func(context.Context) (any, error):
			*out = append(*out, pendingValue{key: key, promise: PromiseFunc(t), assign: func(r any) { m[k] = r }})
		case map[string]any:
			collectPending(t, key, out)
		case Scope:
			collectPending(map[string]any(t), key, out)
		}
	}
}
