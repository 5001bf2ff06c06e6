// Package identity derives the stable keys used for deduplication and
// change detection.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/echoVic/aidayhot-crawler/internal/model"
)

// ContentID returns the stable dedup key for a logical item. It is a pure
// function of the source type and the canonicalized URL, so the same item
// always maps to the same key across runs.
func ContentID(source model.SourceType, rawURL string) string {
	return digest(string(source) + "|" + CanonicalURL(rawURL))
}

// Checksum fingerprints the mutable content of an article. A changed
// checksum for an existing content_id signals a content update.
func Checksum(title, summary string) string {
	return digest(title + summary)
}

// CanonicalURL normalizes a URL for identity purposes: scheme and host are
// lowercased, the fragment is dropped, and a trailing slash is stripped.
// Unparseable input falls back to trimmed verbatim text so identity stays
// deterministic either way.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return strings.TrimSuffix(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
