// Package stealth provides the anti-bot transport layer for listing-site
// extraction: TLS ClientHello impersonation of real browsers, matching
// header sets, and per-source rate budgets.
package stealth

import (
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Profile pairs a utls ClientHello fingerprint with the header set that
// browser actually sends. A mismatched pair (Chrome TLS, Firefox
// headers) is itself a bot signal, so the two always travel together.
type Profile struct {
	Name    string
	HelloID utls.ClientHelloID

	UserAgent string
	headers   []header
}

type header struct {
	name  string
	value string
}

// ChromeProfile impersonates a current desktop Chrome on Windows.
func ChromeProfile() Profile {
	return Profile{
		Name:      "chrome",
		HelloID:   utls.HelloChrome_Auto,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		headers: []header{
			// Accept-Encoding is left to the transport so response
			// decompression stays transparent.
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
			{"Accept-Language", "en-US,en;q=0.9"},
			{"Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
			{"Sec-Ch-Ua-Mobile", "?0"},
			{"Sec-Ch-Ua-Platform", `"Windows"`},
			{"Sec-Fetch-Dest", "document"},
			{"Sec-Fetch-Mode", "navigate"},
			{"Sec-Fetch-Site", "none"},
			{"Sec-Fetch-User", "?1"},
			{"Upgrade-Insecure-Requests", "1"},
		},
	}
}

// FirefoxProfile impersonates a current desktop Firefox on Windows.
func FirefoxProfile() Profile {
	return Profile{
		Name:      "firefox",
		HelloID:   utls.HelloFirefox_Auto,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
		headers: []header{
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
			{"Accept-Language", "en-US,en;q=0.5"},
			{"Sec-Fetch-Dest", "document"},
			{"Sec-Fetch-Mode", "navigate"},
			{"Sec-Fetch-Site", "none"},
			{"Sec-Fetch-User", "?1"},
			{"Upgrade-Insecure-Requests", "1"},
		},
	}
}

// Apply stamps the profile's headers onto a request, preserving any the
// caller already set.
func (p Profile) Apply(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	for _, h := range p.headers {
		if req.Header.Get(h.name) == "" {
			req.Header.Set(h.name, h.value)
		}
	}
}
