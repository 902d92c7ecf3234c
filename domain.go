package fetchq

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DomainKey is a normalized host used to select a queue shard and a
// concurrency bucket. Subdomains of the same registrable domain share a key,
// so cdn1.example.com and cdn2.example.com are limited together.
type DomainKey string

// ParseDomain derives the DomainKey for a URL.
// Returns EINVALID if the URL is malformed or has no host.
func ParseDomain(rawURL string) (DomainKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", Errorf(EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", Errorf(EINVALID, "URL %q has no host", rawURL)
	}
	host = strings.TrimSuffix(host, ".")

	// IP addresses and single-label hosts have no registrable domain.
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return DomainKey(host), nil
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return DomainKey(host), nil
	}
	return DomainKey(registrable), nil
}

// String returns the key as a plain string.
func (k DomainKey) String() string {
	return string(k)
}
