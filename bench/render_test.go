package bench_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrender/blade"
)

// benchViews builds a source set with enough structure (inheritance,
// loops, a component) for compile and execute costs to be visible.
func benchViews() map[string]string {
	var items bytes.Buffer
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&items, "<!-- block %d -->\n", i)
	}
	return map[string]string{
		"layouts/app": `<html><head>@stack('scripts')</head><body>@yield('content')</body></html>`,
		"components/row": `@props(['index', 'text'])
<div class="row">{{ $index }}: {{ $text }}</div>`,
		"pages/list": `@extends('layouts.app')
@section('content')
<ul>
@foreach ($items as $i => $it)
<li><x-row :index="$i" :text="$it" /></li>
@endforeach
</ul>
` + items.String() + `
@endsection
@push('scripts')<script>var n = @json(len $items);</script>@endpush`,
	}
}

func benchData() map[string]any {
	items := make([]string, 100)
	for i := range items {
		items[i] = fmt.Sprintf("Item number %d", i)
	}
	return map[string]any{"items": items}
}

// 1) Render through the compiled-program cache (steady-state serving)
func Benchmark_Render_Cached(b *testing.B) {
	eng := blade.NewWithResolver(blade.MapResolver(benchViews()))
	data := benchData()

	var warm bytes.Buffer
	require.NoError(b, eng.Render(&warm, "pages/list", data))

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := eng.Render(&buf, "pages/list", data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}

// 2) Same, with fingerprint staleness checks skipped
func Benchmark_Render_FastPaths(b *testing.B) {
	eng := blade.NewWithResolver(blade.MapResolver(benchViews()), blade.WithFastPaths())
	data := benchData()

	var warm bytes.Buffer
	require.NoError(b, eng.Render(&warm, "pages/list", data))

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := eng.Render(&buf, "pages/list", data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}

// 3) Compile on every iteration (cold path)
func Benchmark_Render_CompileEachTime(b *testing.B) {
	views := benchViews()
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			eng := blade.NewWithResolver(blade.MapResolver(views))
			if err := eng.Render(&buf, "pages/list", data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}
