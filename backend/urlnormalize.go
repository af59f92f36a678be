package backend

import "strings"

// NormalizeServerURL makes a user-entered server address connectable:
// surrounding whitespace is dropped, a bare host gets an http scheme,
// and trailing slashes are removed.
func NormalizeServerURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	return strings.TrimRight(rawURL, "/")
}

// NormalizeJellyfinURL reduces an address pasted from the Jellyfin web
// client to the API base URL: any URL fragment is dropped and the web
// client path (/web or /web/index.html) is stripped.
func NormalizeJellyfinURL(rawURL string) string {
	rawURL = NormalizeServerURL(rawURL)
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = strings.TrimRight(rawURL[:i], "/")
	}
	for _, suffix := range []string{"/web/index.html", "/web"} {
		if strings.HasSuffix(rawURL, suffix) {
			rawURL = strings.TrimSuffix(rawURL, suffix)
			break
		}
	}
	return rawURL
}
