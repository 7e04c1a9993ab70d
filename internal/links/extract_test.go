package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternExtractor_ResolvesReferences(t *testing.T) {
	tests := []struct {
		name string
		base string
		body string
		want []string
	}{
		{
			name: "root relative",
			base: "http://a.test/",
			body: `<a href="/x">`,
			want: []string{"http://a.test/x"},
		},
		{
			name: "path relative",
			base: "http://a.test/dir/page.html",
			body: `<a href="other.html">`,
			want: []string{"http://a.test/dir/other.html"},
		},
		{
			name: "dot segments",
			base: "http://a.test/dir/sub/page",
			body: `<a href="../up">`,
			want: []string{"http://a.test/dir/up"},
		},
		{
			name: "scheme relative",
			base: "https://a.test/",
			body: `<link href="//cdn.test/site.css">`,
			want: []string{"https://cdn.test/site.css"},
		},
		{
			name: "query only",
			base: "http://a.test/p",
			body: `<a href="?q=1">`,
			want: []string{"http://a.test/p?q=1"},
		},
		{
			name: "fragment only",
			base: "http://a.test/p",
			body: `<a href="#top">`,
			want: []string{"http://a.test/p#top"},
		},
		{
			name: "absolute",
			base: "http://a.test/",
			body: `<a href="https://b.test/path">`,
			want: []string{"https://b.test/path"},
		},
	}

	ex := NewPatternExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.base, tt.body))
		})
	}
}

func TestPatternExtractor_NoMatches(t *testing.T) {
	ex := NewPatternExtractor()

	assert.Empty(t, ex.Extract("http://a.test/", ""))
	assert.Empty(t, ex.Extract("http://a.test/", "<p>no links here</p>"))
	assert.Empty(t, ex.Extract("http://a.test/", `<a href='/single-quoted'>`))
}

func TestPatternExtractor_CollapsesDuplicates(t *testing.T) {
	body := `<a href="/x"></a><a href="/x"></a><a href="http://a.test/x"></a><a href="/y">`

	got := NewPatternExtractor().Extract("http://a.test/", body)
	assert.Equal(t, []string{"http://a.test/x", "http://a.test/y"}, got)
}

func TestPatternExtractor_NonGreedy(t *testing.T) {
	body := `<a href="/one" class="c"><a href="/two">`

	got := NewPatternExtractor().Extract("http://a.test/", body)
	assert.Equal(t, []string{"http://a.test/one", "http://a.test/two"}, got)
}

func TestPatternExtractor_DropsUnparseableReferences(t *testing.T) {
	body := `<a href="http://[::1"><a href="%zz"><a href="/ok">`

	got := NewPatternExtractor().Extract("http://a.test/", body)
	assert.Equal(t, []string{"http://a.test/ok"}, got)
}

func TestPatternExtractor_MalformedMarkup(t *testing.T) {
	ex := NewPatternExtractor()
	bodies := []string{
		`<a href="`,
		`<<<href="/x"`,
		"<a href=\"/a\nb\">",
		"\x00\xff\xfe href=\"/bin\"",
		`</html><a href="/after-close">`,
	}
	for _, body := range bodies {
		assert.NotPanics(t, func() { ex.Extract("http://a.test/", body) })
	}

	assert.Equal(t, []string{"http://a.test/x"}, ex.Extract("http://a.test/", `<<<href="/x"`))
	assert.Equal(t, []string{"http://a.test/after-close"}, ex.Extract("http://a.test/", bodies[4]))
}

func TestPatternExtractor_BadBase(t *testing.T) {
	ex := NewPatternExtractor()

	assert.Empty(t, ex.Extract("", `<a href="/x">`))
	assert.Empty(t, ex.Extract("http://[::1", `<a href="/x">`))
}

func TestPatternExtractor_Idempotent(t *testing.T) {
	ex := NewPatternExtractor()
	body := `<a href="/b"><a href="/a"><a href="https://c.test/">`

	first := ex.Extract("http://a.test/", body)
	second := ex.Extract("http://a.test/", body)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestMarkupExtractor(t *testing.T) {
	body := `<html><head><link rel="stylesheet" href="/s.css"></head>
	<body><a href='/single'>s</a><a href=/bare>b</a><a href="/x">x</a><a>none</a></body></html>`

	got := MarkupExtractor{}.Extract("http://a.test/", body)
	assert.Equal(t, []string{
		"http://a.test/bare",
		"http://a.test/s.css",
		"http://a.test/single",
		"http://a.test/x",
	}, got)
}

func TestMarkupExtractor_Empty(t *testing.T) {
	assert.Empty(t, MarkupExtractor{}.Extract("http://a.test/", ""))
	assert.Empty(t, MarkupExtractor{}.Extract("http://a.test/", "<p>plain</p>"))
}

func TestByName(t *testing.T) {
	ex, err := ByName("")
	require.NoError(t, err)
	assert.IsType(t, &PatternExtractor{}, ex)

	ex, err = ByName("Pattern")
	require.NoError(t, err)
	assert.IsType(t, &PatternExtractor{}, ex)

	ex, err = ByName("markup")
	require.NoError(t, err)
	assert.IsType(t, MarkupExtractor{}, ex)

	_, err = ByName("xpath")
	require.Error(t, err)
	var exErr *ExtractorError
	assert.ErrorAs(t, err, &exErr)
	assert.Contains(t, err.Error(), "unknown extractor")
}
