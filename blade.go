// Package blade is a Blade-syntax template engine: directive and
// component-tag source is compiled into Go html/template programs and
// executed against per-render data, with template inheritance,
// components with slots, fragments, teleports, streaming and both
// compiled-artifact and rendered-content caching.
package blade

import (
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/sync/singleflight"
)

// Mode selects diagnostic behavior: DebugMode fails loudly with full
// detail, ReleaseMode degrades to generic failures with detail only
// logged.
type Mode int

const (
	DebugMode Mode = iota
	ReleaseMode
)

// Engine compiles and renders templates. It is safe for concurrent use
// once configured; registration methods (Global, Funcs,
// RegisterDirective, RegisterComponent) belong in process bootstrap.
type Engine struct {
	resolver      Resolver
	dir           string // source directory when known; enables Watch
	componentRoot string

	programs *haxmap.Map[string, *CompiledProgram]
	sf       singleflight.Group
	cache    *ContentCache

	mode      Mode
	fastPaths bool
	minifier  *minify.M
	log       *slog.Logger

	mu         sync.RWMutex
	globals    map[string]any
	funcs      template.FuncMap
	directives map[string]DirectiveFunc
	components map[string]string
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMode sets the diagnostic mode; the default is DebugMode.
func WithMode(m Mode) Option { return func(e *Engine) { e.mode = m } }

// WithFastPaths skips source fingerprint checks on cache hits, trading
// staleness detection for throughput. A changed source is then only
// picked up after an explicit invalidation.
func WithFastPaths() Option { return func(e *Engine) { e.fastPaths = true } }

// WithMinify minifies rendered HTML output (buffered renders only;
// streams pass through untouched).
func WithMinify() Option {
	return func(e *Engine) {
		m := minify.New()
		m.AddFunc("text/html", mhtml.Minify)
		e.minifier = m
	}
}

// WithLogger sets the structured logger used for degraded-path
// diagnostics.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithResolver replaces the template resolver.
func WithResolver(r Resolver) Option { return func(e *Engine) { e.resolver = r } }

// WithComponentRoot sets the directory component names resolve under;
// the default is "components".
func WithComponentRoot(root string) Option {
	return func(e *Engine) { e.componentRoot = normalizeName(root) }
}

// WithContentCache shares an existing content cache between engines.
func WithContentCache(c *ContentCache) Option { return func(e *Engine) { e.cache = c } }

// New creates an engine reading templates from a directory.
func New(dir string, opts ...Option) *Engine {
	e := newEngine(NewFSResolver(os.DirFS(dir)), opts...)
	e.dir = dir
	return e
}

// NewFS creates an engine reading templates from a filesystem, e.g. an
// embed.FS subtree.
func NewFS(fsys fs.FS, opts ...Option) *Engine {
	return newEngine(NewFSResolver(fsys), opts...)
}

// NewWithResolver creates an engine reading templates through a custom
// resolver.
func NewWithResolver(r Resolver, opts ...Option) *Engine {
	return newEngine(r, opts...)
}

func newEngine(r Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:      r,
		componentRoot: "components",
		programs:      haxmap.New[string, *CompiledProgram](),
		cache:         NewContentCache(),
		log:           slog.Default(),
		globals:       map[string]any{},
		funcs:         template.FuncMap{},
		directives:    map[string]DirectiveFunc{},
		components:    map[string]string{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
