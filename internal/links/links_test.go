package links_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/links"
)

func TestNormalize_StripsTrackingKeepsItemID(t *testing.T) {
	got := links.Normalize("http://weidian.com/?itemID=123&utm_source=x")
	assert.Contains(t, got, "itemID=123")
	assert.NotContains(t, got, "utm_source")
}

func TestNormalize_DropsKnownTrackers(t *testing.T) {
	got := links.Normalize("https://item.taobao.com/item.htm?id=42&spm=a1z&fbclid=abc&gclid=z&ref=me&from=share")
	assert.Equal(t, "https://item.taobao.com/item.htm?id=42", got)
}

func TestNormalize_LeavesUntrackedQueryAlone(t *testing.T) {
	raw := "https://weidian.com/item.html?itemID=7&b=2&a=1"
	assert.Equal(t, raw, links.Normalize(raw))
}

func TestNormalize_WrappingAndPunctuation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"(https://weidian.com/item.html?itemID=5).", "https://weidian.com/item.html?itemID=5"},
		{"`https://1688.com/offer/123.html`", "https://1688.com/offer/123.html"},
		{"\"https://yupoo.com/albums\",", "https://yupoo.com/albums"},
		{"www.weidian.com/item.html?itemID=9!", "http://www.weidian.com/item.html?itemID=9"},
		{"weidian.com/item.html?itemID=9", "http://weidian.com/item.html?itemID=9"},
		{"hxxps://weidian.com/item.html?itemID=1", "https://weidian.com/item.html?itemID=1"},
		{"weidian[dot]com/item.html?itemID=3", "http://weidian.com/item.html?itemID=3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, links.Normalize(tt.in))
		})
	}
}

func TestNormalize_NoSchemeForUnknownTLD(t *testing.T) {
	assert.Equal(t, "hello.world", links.Normalize("hello.world"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		valid bool
	}{
		{"weidian", "https://weidian.com/item.html?itemID=1", true},
		{"private ip", "http://192.168.1.1/item.html", false},
		{"loopback", "http://127.0.0.1/item.html", false},
		{"private 172", "http://172.20.1.1/x.html", false},
		{"bad tld", "https://example.zzz/item", false},
		{"numeric tld", "http://8.8.8.8/item.html", false},
		{"ftp", "ftp://weidian.com/file", false},
		{"too short", "http://a.c", false},
		{"no dot", "http://localhost/thing", false},
		{"underscore host", "http://we_idian.com/item", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := links.Validate(tt.url)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.Error(t, err)
			assert.True(t, errors.As(err, &verr))
			assert.False(t, links.IsValid(tt.url))
		})
	}
}

func TestExtract_AllFormats(t *testing.T) {
	text := strings.Join([]string{
		"plain https://weidian.com/item.html?itemID=1 here",
		"[my link](https://item.taobao.com/item.htm?id=2)",
		`<a href="https://1688.com/offer/3.html">offer</a>`,
		"bare yupoo.com/albums/4 too",
	}, "\n")

	found := links.Extract(text)
	urls := links.URLs(found)

	assert.Contains(t, urls, "https://weidian.com/item.html?itemID=1")
	assert.Contains(t, urls, "https://item.taobao.com/item.htm?id=2")
	assert.Contains(t, urls, "https://1688.com/offer/3.html")
	assert.Contains(t, urls, "http://yupoo.com/albums/4")

	formats := map[string]domain.Format{}
	for _, l := range found {
		formats[l.URL] = l.Format
	}
	assert.Equal(t, domain.FormatMarkdown, formats["https://item.taobao.com/item.htm?id=2"])
	assert.Equal(t, domain.FormatPlain, formats["https://weidian.com/item.html?itemID=1"])
}

func TestExtract_Idempotent(t *testing.T) {
	text := "w2c https://weidian.com/?itemID=999 and weidian.com/item.html?itemID=12 plus [x](https://1688.com/offer/55.html)"
	first := links.Extract(text)
	second := links.Extract(text)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestExtract_DeduplicatesCanonicalURL(t *testing.T) {
	text := "https://weidian.com/?itemID=999&utm_source=a again https://weidian.com/?itemID=999"
	found := links.Extract(text)
	require.Len(t, found, 1)
	assert.Equal(t, "https://weidian.com/?itemID=999", found[0].URL)
}

func TestExtract_Obfuscated(t *testing.T) {
	tests := []struct {
		name, text, want string
	}{
		{"hxxp", "get it hxxps://weidian.com/item.html?itemID=8 now", "https://weidian.com/item.html?itemID=8"},
		{"spaced scheme", "link: https : / / weidian.com/item.html?itemID=8", "https://weidian.com/item.html?itemID=8"},
		{"paren dot", "https://weidian(dot)com/item.html?itemID=8", "https://weidian.com/item.html?itemID=8"},
		{"zero width", "https://wei\u200bdian.com/item.html?itemID=8", "https://weidian.com/item.html?itemID=8"},
		{"fullwidth dot", "https://weidian．com/item.html?itemID=8", "https://weidian.com/item.html?itemID=8"},
		{"entity", "https://weidian.com/item.html?itemID=8&amp;spm=x", "https://weidian.com/item.html?itemID=8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, links.URLs(links.Extract(tt.text)), tt.want)
		})
	}
}

func TestExtract_SentenceDotEndsLink(t *testing.T) {
	found := links.Extract("Link: https://weidian.com/?itemID=999. Great shoes")
	assert.Equal(t, []string{"https://weidian.com/?itemID=999"}, links.URLs(found))

	spaced := links.Extract("weidian . com/item.html?itemID=3")
	assert.Equal(t, []string{"http://weidian.com/item.html?itemID=3"}, links.URLs(spaced))
}

func TestExtract_DropsInvalidWithoutAborting(t *testing.T) {
	var rejected []domain.Format
	ex := &links.Extractor{Rejected: func(f domain.Format, err error) {
		rejected = append(rejected, f)
	}}
	found := ex.Extract("bad http://192.168.1.1/item.html good https://weidian.com/item.html?itemID=4")
	assert.Equal(t, []string{"https://weidian.com/item.html?itemID=4"}, links.URLs(found))
	assert.NotEmpty(t, rejected)
}

func TestExtract_IgnoresProse(t *testing.T) {
	assert.Empty(t, links.Extract("the quality is good. really recommend it"))
}

func TestExtractWithContext_Window(t *testing.T) {
	prefix := strings.Repeat("a", 300)
	text := prefix + " nike dunk https://weidian.com/item.html?itemID=5 size 42 " + strings.Repeat("z", 300)
	found := links.ExtractWithContext(text)
	require.Len(t, found, 1)
	ctx := found[0].Context
	assert.Contains(t, ctx, "nike dunk")
	assert.Contains(t, ctx, "size 42")
	assert.LessOrEqual(t, len(ctx), 2*links.ContextRadius+len("https://weidian.com/item.html?itemID=5"))
}

func TestExtractWithContext_SkipsHTMLAnchors(t *testing.T) {
	found := links.ExtractWithContext(`<a href="https://1688.com/offer/3.html">offer</a>`)
	for _, l := range found {
		assert.NotEqual(t, domain.FormatHTML, l.Format)
	}
}

func TestHTMLToText(t *testing.T) {
	in := `&lt;div&gt;&lt;p&gt;Nice jordans&lt;br/&gt;&lt;a href="https://weidian.com/item.html?itemID=77"&gt;here&lt;/a&gt;&lt;/p&gt;&lt;/div&gt;`
	out := links.HTMLToText(in)
	assert.Contains(t, out, "Nice jordans")
	assert.Contains(t, out, "https://weidian.com/item.html?itemID=77")
}
