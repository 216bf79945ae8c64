package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

// CanonicalURL resolves href against base and normalizes it so equal ads
// compare equal: lowercase scheme and host, no query or fragment, no
// default port, no trailing slash. Ad URLs are keyed by path alone.
func CanonicalURL(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidURL, href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", types.ErrInvalidURL, u.Scheme)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String(), nil
}
