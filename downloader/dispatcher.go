package downloader

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Dispatcher maps URLs to the client that owns them. Clients are tried in
// registration order and the first match wins.
type Dispatcher struct {
	clients []Client
	// byDomain indexes clients by the registrable domain of their patterns.
	byDomain map[string][]Client
}

// NewDispatcher registers clients in order.
func NewDispatcher(clients ...Client) *Dispatcher {
	d := &Dispatcher{byDomain: make(map[string][]Client)}
	for _, c := range clients {
		d.Register(c)
	}
	return d
}

// Register adds a client after the already registered ones.
func (d *Dispatcher) Register(c Client) {
	d.clients = append(d.clients, c)
	seen := make(map[string]bool)
	for _, raw := range c.Domains() {
		domain := registrableDomain(parsePattern(raw).host)
		if seen[domain] {
			continue
		}
		seen[domain] = true
		d.byDomain[domain] = append(d.byDomain[domain], c)
	}
}

// Clients returns the registered clients in order.
func (d *Dispatcher) Clients() []Client {
	return d.clients
}

// Resolve returns the client owning rawURL, or ErrDispatchMiss.
func (d *Dispatcher) Resolve(rawURL string) (Client, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, nil, ErrDispatchMiss
	}

	for _, c := range d.byDomain[registrableDomain(u.Hostname())] {
		if c.Matches(u) {
			return c, u, nil
		}
	}
	return nil, nil, ErrDispatchMiss
}

// ShouldHandle reports whether some client owns rawURL.
func (d *Dispatcher) ShouldHandle(rawURL string) bool {
	_, _, err := d.Resolve(rawURL)
	return err == nil
}

// registrableDomain reduces a host to its eTLD+1 (vm.tiktok.com -> tiktok.com).
// Hosts publicsuffix cannot reduce are used as is.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
