package shopping

import (
	"net/url"
	"strings"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
)

// Default redirect template parameters.
const (
	DefaultAffiliateBase = "https://mulebuy.com/product/"
	DefaultAffiliateRef  = "200647145"
)

// Affiliate rewrites products into one redirect URL template.
type Affiliate struct {
	BaseURL string
	Ref     string
}

// DefaultAffiliate uses the stock redirect and referral code.
func DefaultAffiliate() Affiliate {
	return Affiliate{BaseURL: DefaultAffiliateBase, Ref: DefaultAffiliateRef}
}

// Link builds <base>?shop_type=<platform>&id=<id>&ref=<ref>. It returns ""
// when platform or id is empty.
func (a Affiliate) Link(platform, id string) string {
	if platform == "" || id == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(a.BaseURL)
	b.WriteString("?shop_type=")
	b.WriteString(url.QueryEscape(strings.ToLower(platform)))
	b.WriteString("&id=")
	b.WriteString(url.QueryEscape(id))
	if a.Ref != "" {
		b.WriteString("&ref=")
		b.WriteString(url.QueryEscape(a.Ref))
	}
	return b.String()
}

// OnRedirect reports whether raw already points at the redirect domain.
func (a Affiliate) OnRedirect(raw string) bool {
	base, err := url.Parse(a.BaseURL)
	if err != nil || base.Host == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return hasLabelSuffix(hostOf(u), hostOf(base))
}

// Convert returns the affiliate URL for raw. Links on the redirect domain
// are passed through unchanged.
func (a Affiliate) Convert(raw string) (Product, string, bool) {
	p, ok := Classify(raw)
	if !ok {
		return Product{}, "", false
	}
	if a.OnRedirect(raw) {
		return p, raw, true
	}
	return p, a.Link(p.Platform, p.ItemID), true
}

// Converter turns extracted links on allow-listed domains into
// ShoppingMatches.
type Converter struct {
	Registry  *Registry
	Affiliate Affiliate
}

// NewConverter falls back to the default registry when reg is nil.
func NewConverter(reg *Registry, aff Affiliate) *Converter {
	if reg == nil {
		reg = Default
	}
	if aff.BaseURL == "" {
		aff.BaseURL = DefaultAffiliateBase
	}
	return &Converter{Registry: reg, Affiliate: aff}
}

// Match classifies one link. The bool is false when the link is not a
// shopping link.
func (c *Converter) Match(link domain.ExtractedLink) (domain.ShoppingMatch, bool) {
	if !c.Registry.IsShopping(link.URL) {
		return domain.ShoppingMatch{}, false
	}
	m := domain.ShoppingMatch{
		ExtractedLink: link,
		Domain:        hostFromRaw(link.URL),
		CanonicalID:   CanonicalID(link.URL),
	}
	if p, aff, ok := c.Affiliate.Convert(link.URL); ok {
		m.Platform = p.Platform
		m.ItemID = p.ItemID
		m.AffiliateURL = aff
	}
	return m, true
}

// Conversion records an affiliate rewrite; false when m has no product.
func (c *Converter) Conversion(m domain.ShoppingMatch, origin, query, postID string, at time.Time) (domain.Conversion, bool) {
	if m.Platform == "" || m.ItemID == "" || m.AffiliateURL == "" {
		return domain.Conversion{}, false
	}
	return domain.Conversion{
		Origin:       origin,
		Query:        query,
		PostID:       postID,
		SourceURL:    m.URL,
		Platform:     m.Platform,
		ItemID:       m.ItemID,
		AffiliateURL: m.AffiliateURL,
		At:           at.UnixMilli(),
	}, true
}

func hostFromRaw(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return hostOf(u)
}
