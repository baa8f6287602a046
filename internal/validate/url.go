package validate

import (
	"fmt"
	"net/url"
)

// ValidateURL validates a web_fetch target: length, scheme, hostname
// presence, and SSRF screening of the destination. It must be called before
// any network I/O.
func ValidateURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "url", Reason: "url must not be empty"}
	}
	if len(raw) > MaxURLLen {
		return &ValidationError{
			Field:  "url",
			Reason: fmt.Sprintf("url length %d exceeds limit of %d", len(raw), MaxURLLen),
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("invalid url: %v", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{
			Field:  "url",
			Reason: fmt.Sprintf("scheme %q not allowed, only http and https are permitted", parsed.Scheme),
		}
	}
	if parsed.Hostname() == "" {
		return &ValidationError{Field: "url", Reason: "url has no hostname"}
	}

	return ValidatePublicHostname(parsed.Hostname())
}
