package normalize

import "strings"

// blockedHosts are social and aggregator hosts that never identify a company.
var blockedHosts = []string{
	"twitter.com",
	"x.com",
	"linkedin.com",
	"facebook.com",
	"instagram.com",
	"crunchbase.com",
	"indeed.com",
	"glassdoor.com",
}

// CleanDomain reduces a URL or domain-like value to a bare hostname.
// It returns "" when nothing usable remains.
func CleanDomain(value string) string {
	d := strings.ToLower(strings.TrimSpace(value))
	if d == "" {
		return ""
	}

	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "//")
	if at := strings.LastIndex(d, "@"); at >= 0 && !strings.ContainsAny(d[:at], "/?#") {
		// user@host forms: keep the host part.
		d = d[at+1:]
	}
	d = strings.TrimPrefix(d, "www.")

	if i := strings.IndexAny(d, "/;?#: \t\r\n"); i >= 0 {
		d = d[:i]
	}
	d = strings.Trim(d, ".")

	if d == "" || !strings.Contains(d, ".") {
		return ""
	}
	if isBlockedHost(d) {
		return ""
	}
	return d
}

func isBlockedHost(host string) bool {
	for _, b := range blockedHosts {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}
