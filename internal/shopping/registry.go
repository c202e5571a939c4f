// Package shopping recognises commerce links, derives product identity and
// rewrites links into the affiliate redirect.
package shopping

import (
	"net/url"
	"sort"
	"strings"
)

// Validator inspects the shape of a URL already matched to a site.
type Validator func(u *url.URL) bool

// Site is one allow-listed commerce domain. A nil Validate accepts any URL
// on the domain.
type Site struct {
	Domain   string
	Validate Validator
}

// DefaultWeight is the domain quality weight for hosts with no entry.
const DefaultWeight = 0.5

// Registry dispatches hosts to sites by the longest label-boundary suffix.
type Registry struct {
	sites   []Site
	weights map[string]float64
	wkeys   []string
}

// NewRegistry builds a registry; sites and weight keys are matched longest
// first so "item.taobao.com" wins over "taobao.com".
func NewRegistry(sites []Site, weights map[string]float64) *Registry {
	r := &Registry{
		sites:   append([]Site(nil), sites...),
		weights: make(map[string]float64, len(weights)),
	}
	for k, v := range weights {
		k = strings.ToLower(k)
		r.weights[k] = v
		r.wkeys = append(r.wkeys, k)
	}
	sort.SliceStable(r.sites, func(i, j int) bool { return len(r.sites[i].Domain) > len(r.sites[j].Domain) })
	sort.SliceStable(r.wkeys, func(i, j int) bool { return len(r.wkeys[i]) > len(r.wkeys[j]) })
	return r
}

func hasLabelSuffix(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hostOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Lookup returns the site owning host.
func (r *Registry) Lookup(host string) (Site, bool) {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, s := range r.sites {
		if hasLabelSuffix(host, s.Domain) {
			return s, true
		}
	}
	return Site{}, false
}

// IsShopping reports whether raw is on an allow-listed domain and passes
// that domain's structural check.
func (r *Registry) IsShopping(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	site, ok := r.Lookup(u.Hostname())
	if !ok {
		return false
	}
	return site.Validate == nil || site.Validate(u)
}

// DomainWeight returns the quality weight of raw's host.
func (r *Registry) DomainWeight(raw string) float64 {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return DefaultWeight
	}
	host := hostOf(u)
	for _, k := range r.wkeys {
		if hasLabelSuffix(host, k) {
			return r.weights[k]
		}
	}
	return DefaultWeight
}

// Domains lists the registered domains, longest first.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s.Domain)
	}
	return out
}

func queryID(u *url.URL, keys ...string) string {
	q := u.Query()
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func pathHas(u *url.URL, parts ...string) bool {
	p := strings.ToLower(u.Path)
	for _, part := range parts {
		if strings.Contains(p, part) {
			return true
		}
	}
	return false
}

func weidianItem(u *url.URL) bool {
	return queryID(u, "itemID", "itemid") != "" || strings.HasSuffix(strings.ToLower(u.Path), "item.html")
}

func taobaoItem(u *url.URL) bool {
	return pathHas(u, "item.htm") && queryID(u, "id") != ""
}

func offerPage(u *url.URL) bool {
	return pathHas(u, "/offer/") || queryID(u, "id") != ""
}

func alibabaProduct(u *url.URL) bool {
	return pathHas(u, "/product-detail", "/offer/") || queryID(u, "id") != ""
}

func redirectItem(u *url.URL) bool {
	return queryID(u, "id") != ""
}

// DefaultSites is the commerce allow-list.
func DefaultSites() []Site {
	return []Site{
		{Domain: "weidian.com", Validate: weidianItem},
		{Domain: "item.taobao.com", Validate: taobaoItem},
		{Domain: "taobao.com", Validate: taobaoItem},
		{Domain: "m.tb.cn"},
		{Domain: "1688.com", Validate: offerPage},
		{Domain: "acbuy.com"},
		{Domain: "mulebuy.com", Validate: redirectItem},
		{Domain: "allchinabuy.com"},
		{Domain: "itaobuy.com"},
		{Domain: "tmall.com", Validate: taobaoItem},
		{Domain: "alibaba.com", Validate: alibabaProduct},
		{Domain: "pandabuy.com"},
		{Domain: "wegobuy.com"},
		{Domain: "superbuy.com"},
		{Domain: "cssbuy.com"},
		{Domain: "ytaopal.com"},
		{Domain: "basetao.com"},
		{Domain: "sugargoo.com"},
		{Domain: "cnfans.com"},
		{Domain: "hoobuy.com"},
		{Domain: "hagobuy.com"},
		{Domain: "kameymall.com"},
		{Domain: "joyabuy.com"},
		{Domain: "yupoo.com"},
	}
}

// DefaultWeights rates how often links on a domain lead to a real listing.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"weidian.com":     1.0,
		"1688.com":        0.95,
		"item.taobao.com": 0.9,
		"taobao.com":      0.85,
		"tmall.com":       0.8,
		"alibaba.com":     0.75,
		"yupoo.com":       0.7,
		"pandabuy.com":    0.6,
		"wegobuy.com":     0.6,
		"superbuy.com":    0.6,
		"discord.gg":      0.2,
		"linktr.ee":       0.3,
		"instagram.com":   0.3,
	}
}

// Default is the registry built from DefaultSites and DefaultWeights.
var Default = NewRegistry(DefaultSites(), DefaultWeights())

// IsShopping checks raw against the default registry.
func IsShopping(raw string) bool { return Default.IsShopping(raw) }

// DomainWeight looks raw up in the default registry.
func DomainWeight(raw string) float64 { return Default.DomainWeight(raw) }
