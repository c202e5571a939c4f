package shopping_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/shopping"
)

func TestIsShopping(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://weidian.com/?itemID=999", true},
		{"https://weidian.com/item.html?itemID=1", true},
		{"https://shop1234.weidian.com/item.html", true},
		{"https://weidian.com/", false},
		{"https://item.taobao.com/item.htm?id=42", true},
		{"https://item.taobao.com/", false},
		{"https://detail.tmall.com/item.htm?id=7", true},
		{"https://detail.1688.com/offer/123456.html", true},
		{"https://1688.com/", false},
		{"https://www.alibaba.com/product-detail/x_1.html", true},
		{"https://mulebuy.com/product/?shop_type=weidian&id=5", true},
		{"https://m.tb.cn/h.abc", true},
		{"https://x.yupoo.com/albums/1", true},
		{"https://notweidian.com/?itemID=1", false},
		{"https://example.com/item.html", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, shopping.IsShopping(tt.url))
		})
	}
}

func TestRegistry_LongestSuffixWins(t *testing.T) {
	site, ok := shopping.Default.Lookup("item.taobao.com")
	require.True(t, ok)
	assert.Equal(t, "item.taobao.com", site.Domain)

	site, ok = shopping.Default.Lookup("www.world.taobao.com")
	require.True(t, ok)
	assert.Equal(t, "taobao.com", site.Domain)
}

func TestDomainWeight(t *testing.T) {
	assert.InDelta(t, 1.0, shopping.DomainWeight("https://weidian.com/?itemID=1"), 1e-9)
	assert.InDelta(t, 0.9, shopping.DomainWeight("https://item.taobao.com/item.htm?id=1"), 1e-9)
	assert.InDelta(t, 0.85, shopping.DomainWeight("https://world.taobao.com/item.htm?id=1"), 1e-9)
	assert.InDelta(t, 0.2, shopping.DomainWeight("https://discord.gg/abc"), 1e-9)
	assert.InDelta(t, shopping.DefaultWeight, shopping.DomainWeight("https://cnfans.com/x"), 1e-9)
	assert.InDelta(t, shopping.DefaultWeight, shopping.DomainWeight("::bad"), 1e-9)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url      string
		platform string
		id       string
	}{
		{"https://weidian.com/?itemID=999", "weidian", "999"},
		{"https://weidian.com/item.html?itemid=12", "weidian", "12"},
		{"https://item.taobao.com/item.htm?id=42", "taobao", "42"},
		{"https://detail.tmall.com/item.htm?id=77", "taobao", "77"},
		{"https://detail.1688.com/offer/123456.html", "1688", "123456"},
		{"https://mulebuy.com/product/?shop_type=weidian&id=5&ref=1", "weidian", "5"},
		{"https://mulebuy.com/product/?id=9", "mulebuy", "9"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p, ok := shopping.Classify(tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.platform, p.Platform)
			assert.Equal(t, tt.id, p.ItemID)
		})
	}

	_, ok := shopping.Classify("https://yupoo.com/albums/1")
	assert.False(t, ok)
}

func TestCanonicalID_FallsBackToHostPath(t *testing.T) {
	assert.Equal(t, "yupoo.com:/albums/1", shopping.CanonicalID("https://www.yupoo.com/albums/1?x=2"))
	assert.Equal(t, "weidian:1", shopping.CanonicalID("https://weidian.com/item.html?itemID=1&b=2"))
}

func TestAffiliate_RoundTrip(t *testing.T) {
	aff := shopping.DefaultAffiliate()
	urls := []string{
		"https://weidian.com/?itemID=999",
		"https://item.taobao.com/item.htm?id=42",
		"https://detail.tmall.com/item.htm?id=8",
		"https://detail.1688.com/offer/123456.html",
	}
	for _, raw := range urls {
		t.Run(raw, func(t *testing.T) {
			p, ok := shopping.Classify(raw)
			require.True(t, ok)
			link := aff.Link(p.Platform, p.ItemID)
			back, ok := shopping.Classify(link)
			require.True(t, ok)
			assert.Equal(t, p.CanonicalID(), back.CanonicalID())
		})
	}
}

func TestAffiliate_Link(t *testing.T) {
	aff := shopping.DefaultAffiliate()
	assert.Equal(t, "https://mulebuy.com/product/?shop_type=weidian&id=999&ref=200647145", aff.Link("Weidian", "999"))
	assert.Empty(t, aff.Link("", "1"))
	assert.Equal(t, "https://r.example.com/?shop_type=1688&id=1", shopping.Affiliate{BaseURL: "https://r.example.com/"}.Link("1688", "1"))
}

func TestAffiliate_PassesRedirectThrough(t *testing.T) {
	aff := shopping.DefaultAffiliate()
	raw := "https://mulebuy.com/product/?shop_type=taobao&id=5&ref=someone"
	p, out, ok := aff.Convert(raw)
	require.True(t, ok)
	assert.Equal(t, raw, out)
	assert.Equal(t, "taobao", p.Platform)
}

func TestConverter_Match(t *testing.T) {
	conv := shopping.NewConverter(nil, shopping.DefaultAffiliate())

	m, ok := conv.Match(domain.ExtractedLink{URL: "https://weidian.com/?itemID=999", Format: domain.FormatPlain})
	require.True(t, ok)
	assert.Equal(t, "weidian", m.Platform)
	assert.Equal(t, "999", m.ItemID)
	assert.Equal(t, "weidian:999", m.CanonicalID)
	assert.Equal(t, "weidian.com", m.Domain)
	assert.Contains(t, m.AffiliateURL, "id=999")

	m, ok = conv.Match(domain.ExtractedLink{URL: "https://x.yupoo.com/albums/3"})
	require.True(t, ok)
	assert.Empty(t, m.AffiliateURL)
	_, ok = conv.Conversion(m, "search", "q", "p1", time.Now())
	assert.False(t, ok)

	_, ok = conv.Match(domain.ExtractedLink{URL: "https://example.com/item"})
	assert.False(t, ok)
}

func TestConverter_Conversion(t *testing.T) {
	conv := shopping.NewConverter(nil, shopping.DefaultAffiliate())
	m, ok := conv.Match(domain.ExtractedLink{URL: "https://item.taobao.com/item.htm?id=42"})
	require.True(t, ok)

	at := time.UnixMilli(1700000000000)
	c, ok := conv.Conversion(m, "extract", "shoes", "abc", at)
	require.True(t, ok)
	assert.Equal(t, "taobao", c.Platform)
	assert.Equal(t, "42", c.ItemID)
	assert.Equal(t, int64(1700000000000), c.At)
	assert.Equal(t, "https://item.taobao.com/item.htm?id=42", c.SourceURL)
}

func TestTitleFilter(t *testing.T) {
	f := shopping.NewTitleFilter()
	assert.True(t, f.Any("HUGE GIVEAWAY this week"))
	assert.True(t, f.Any("Weekly Thread: ask here"))
	assert.False(t, f.Any("W2C jordan 4 military black"))
}

func TestWordPhrases(t *testing.T) {
	p := shopping.NewWordPhrases([]string{"ts", "stone island", "off-white"})
	assert.Empty(t, p.Find("new shorts"))
	assert.Equal(t, []string{"ts"}, p.Find("TS batch"))
	assert.ElementsMatch(t, []string{"stone island", "off-white"}, p.Find("Stone  Island, off-white hoodie"))
	assert.Equal(t, 3, p.Len())
}

func TestLinkTagger(t *testing.T) {
	tags := shopping.NewLinkTagger().Find("https://weidian.com/item.html?itemID=1")
	assert.Contains(t, tags, "weidian")
	assert.Contains(t, tags, "weidian.com")
	assert.Empty(t, shopping.NewPhrases(nil).Find("anything"))
}
