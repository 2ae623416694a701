package planner

import (
	"net/url"
	"regexp"
	"strings"
)

var urlRE = regexp.MustCompile(`https?://\S+`)

// extractURL returns the first http/https URL in text with trailing
// punctuation stripped, or "" when none is present.
func extractURL(text string) string {
	raw := urlRE.FindString(text)
	if raw == "" {
		return ""
	}
	return strings.TrimRight(raw, `).,]}>"'`)
}

// decisionForURL maps a target URL onto the allowlist: exact host matches
// and subdomains of an allowed domain get allow, everything else confirm.
// Unparseable URLs are never auto-allowed.
func decisionForURL(rawURL string, allowed []string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return DecisionConfirm, "target host could not be determined"
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return DecisionAllow, "domain " + domain + " is allowlisted"
		}
	}
	return DecisionConfirm, "host " + host + " is not allowlisted"
}
