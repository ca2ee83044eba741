// Package fingerprint derives the stable identity used to remember delivered articles.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys dropped by Normalize. Keys with a "utm_" prefix are dropped too.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"oc":      {},
	"ocid":    {},
	"cmpid":   {},
	"ref_src": {},
}

// Sum returns the hex-encoded SHA-256 digest of the URL string, trimmed of surrounding whitespace.
func Sum(rawURL string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(h[:])
}

// Hasher computes fingerprints, optionally normalising URLs first.
type Hasher struct {
	normalize bool
}

// NewHasher returns a Hasher. With normalize set, tracking parameters and fragments
// are removed before hashing so mirrored links collapse to one identity.
func NewHasher(normalize bool) Hasher {
	return Hasher{normalize: normalize}
}

// Fingerprint returns the identity for rawURL.
func (h Hasher) Fingerprint(rawURL string) string {
	if h.normalize {
		rawURL = Normalize(rawURL)
	}
	return Sum(rawURL)
}

// Normalize lowercases scheme and host, drops the fragment and tracking query
// parameters, and sorts the remaining query. Unparseable input is returned trimmed.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if _, drop := trackingParams[lk]; drop || strings.HasPrefix(lk, "utm_") {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range q[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}
