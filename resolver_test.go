package blade

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	for in, want := range map[string]string{
		"pages.home":          "pages/home",
		"pages/home":          "pages/home",
		"pages/home.blade":    "pages/home",
		"'pages.home'":        "pages/home",
		" layouts/app.tmpl ":  "layouts/app",
		"index":               "index",
		"admin/users.blade":   "admin/users",
		"emails/welcome.html": "emails/welcome",
	} {
		assert.Equal(t, want, normalizeName(in), "input %q", in)
	}
}

func TestFSResolverProbesExtensions(t *testing.T) {
	fsys := fstest.MapFS{
		"pages/home.blade":  {Data: []byte("home")},
		"layouts/app.tmpl":  {Data: []byte("app")},
		"partials/nav.html": {Data: []byte("nav")},
		"notes.txt":         {Data: []byte("skip me")},
	}
	r := NewFSResolver(fsys)

	for name, want := range map[string]string{
		"pages/home":   "home",
		"pages.home":   "home",
		"layouts/app":  "app",
		"partials/nav": "nav",
	} {
		src, err := r.Resolve(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, want, string(src.Bytes))
		assert.NotEmpty(t, src.Fingerprint)
	}

	_, err := r.Resolve("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSResolverList(t *testing.T) {
	fsys := fstest.MapFS{
		"pages/home.blade": {Data: []byte("a")},
		"layouts/app.tmpl": {Data: []byte("b")},
		"readme.md":        {Data: []byte("c")},
	}
	names, err := NewFSResolver(fsys).List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pages/home", "layouts/app"}, names)
}

func TestMapResolverFingerprintTracksContent(t *testing.T) {
	m := MapResolver{"p": "v1"}
	a, err := m.Resolve("p")
	require.NoError(t, err)

	m["p"] = "v2"
	b, err := m.Resolve("p")
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestProgramStale(t *testing.T) {
	views := map[string]string{"p": "v1"}
	e := testEngine(views)
	prog, err := e.program("p")
	require.NoError(t, err)
	assert.False(t, prog.stale(e.resolver))

	views["p"] = "v2"
	assert.True(t, prog.stale(e.resolver))

	delete(views, "p")
	assert.True(t, prog.stale(e.resolver))
}

func TestEngineFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"hello.blade": {Data: []byte(`Hi {{ $name }}`)},
	}
	e := NewFS(fsys)
	out, err := e.RenderString("hello", map[string]any{"name": "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Go", out)
}

func TestWatcherLogicalName(t *testing.T) {
	e := New("/srv/views")
	for abs, want := range map[string]string{
		"/srv/views/pages/home.blade": "pages/home",
		"/srv/views/app.tmpl":         "app",
	} {
		got, ok := e.logicalName(abs)
		require.True(t, ok, "path %q", abs)
		assert.Equal(t, want, got)
	}

	_, ok := e.logicalName("/srv/views/notes.txt")
	assert.False(t, ok)
	_, ok = e.logicalName("/elsewhere/x.blade")
	assert.False(t, ok)
}
