package shopping

import (
	"net/url"
	"regexp"
	"strings"
)

var reOfferID = regexp.MustCompile(`(?i)offer/(\d+)`)

// Product is the platform-level identity of a listing.
type Product struct {
	Platform string `json:"platform"`
	ItemID   string `json:"id"`
}

// CanonicalID is "platform:itemId".
func (p Product) CanonicalID() string { return p.Platform + ":" + p.ItemID }

// Classify derives the product behind raw. Redirect links carrying
// shop_type and id resolve to the underlying platform.
func Classify(raw string) (Product, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Product{}, false
	}
	host := hostOf(u)
	switch {
	case hasLabelSuffix(host, "weidian.com"):
		if id := queryID(u, "itemID", "itemid"); id != "" {
			return Product{Platform: "weidian", ItemID: id}, true
		}
	case hasLabelSuffix(host, "taobao.com"), hasLabelSuffix(host, "tmall.com"):
		if id := queryID(u, "id"); id != "" {
			return Product{Platform: "taobao", ItemID: id}, true
		}
	case hasLabelSuffix(host, "1688.com"):
		if m := reOfferID.FindStringSubmatch(u.Path); m != nil {
			return Product{Platform: "1688", ItemID: m[1]}, true
		}
	case hasLabelSuffix(host, "mulebuy.com"):
		id := queryID(u, "id")
		if id == "" {
			break
		}
		if shop := strings.ToLower(queryID(u, "shop_type")); shop != "" {
			return Product{Platform: shop, ItemID: id}, true
		}
		return Product{Platform: "mulebuy", ItemID: id}, true
	}
	return Product{}, false
}

// CanonicalID returns the product identity of raw, or host:path when no
// platform rule applies.
func CanonicalID(raw string) string {
	if p, ok := Classify(raw); ok {
		return p.CanonicalID()
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return hostOf(u) + ":" + u.Path
}
