// Package scrub redacts secrets and credentials from values before they are
// written to the audit trail. All functions are pure: inputs are never
// mutated, and scrubbing an already-scrubbed value is a no-op.
package scrub

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxScanChars caps how much of a string is pattern-scanned. Anything past
// the cap is dropped with a truncation notice rather than logged raw.
const maxScanChars = 100000

// maxDepth caps recursion into nested maps and slices.
const maxDepth = 10

// namedPattern pairs a compiled secret pattern with the tag that replaces it.
type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// Patterns are ordered: provider-specific key formats first, then structural
// credentials, then generic assignment forms. Order matters because the
// generic patterns would otherwise swallow the more specific tags. The
// generic value classes stop at '[' so an earlier redaction tag is never
// re-matched.
var secretPatterns = []namedPattern{
	{"anthropic_api_key", regexp.MustCompile(`(?i)sk-ant-[A-Za-z0-9\-_]{20,}`)},
	{"openai_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}`)},
	{"aws_access_key_id", regexp.MustCompile(`\bAKIA[A-Z0-9]{16}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[ps]_[A-Za-z0-9]{36}\b`)},
	{"bearer_token", regexp.MustCompile(`\bBearer\s+[A-Za-z0-9\-._~+/]{8,}=*`)},
	{"pem_private_key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"generic_password_assign", regexp.MustCompile(`(?i)\bpassword\s*[=:]\s*[^\s\[]{4,}`)},
	{"generic_token_assign", regexp.MustCompile(`(?i)\btoken\s*[=:]\s*[^\s,}"'\[]{8,}`)},
	{"generic_secret_assign", regexp.MustCompile(`(?i)\bsecret\s*[=:]\s*[^\s,}"'\[]{8,}`)},
}

// sensitiveKeyRe matches map keys whose values are replaced wholesale,
// regardless of what the value looks like.
var sensitiveKeyRe = regexp.MustCompile(`(?i)(password|secret|token|api[_\-]?key|auth(?:orization)?|credential|private[_\-]?key|access[_\-]?key|client[_\-]?secret)`)

// sensitiveQueryParams are URL query parameter names whose values are
// redacted when a URL appears inside a scrubbed string.
var sensitiveQueryParams = map[string]bool{
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
	"auth":          true,
	"access_token":  true,
	"refresh_token": true,
	"key":           true,
	"private_key":   true,
	"client_secret": true,
	"authorization": true,
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"']+`)

// String scrubs secrets from a single string. Strings longer than the scan
// cap are truncated with an explicit notice so the audit record can never
// carry unbounded (and unscanned) payloads.
func String(s string) string {
	if len(s) > maxScanChars {
		cut := maxScanChars
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		dropped := len(s) - cut
		s = s[:cut] + fmt.Sprintf("...[truncated %d chars]", dropped)
	}
	s = urlRe.ReplaceAllStringFunc(s, scrubURL)
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, "[REDACTED:"+p.name+"]")
	}
	return s
}

// Map returns a scrubbed copy of m. The input map is not modified. Values
// under sensitive key names are replaced without inspection; everything else
// is scrubbed recursively up to the depth cap.
func Map(m map[string]any) map[string]any {
	return scrubMap(m, 0)
}

// Value scrubs an arbitrary value the way Map scrubs map entries.
func Value(v any) any {
	return scrubValue(v, 0)
}

func scrubMap(m map[string]any, depth int) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKeyRe.MatchString(k) {
			out[k] = "[REDACTED:sensitive_key]"
			continue
		}
		out[k] = scrubValue(v, depth+1)
	}
	return out
}

func scrubValue(v any, depth int) any {
	if depth > maxDepth {
		return "[truncated:max_depth]"
	}
	switch val := v.(type) {
	case string:
		return String(val)
	case map[string]any:
		return scrubMap(val, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = scrubValue(item, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = String(item)
		}
		return out
	case error:
		return String(val.Error())
	default:
		return v
	}
}

// scrubURL redacts the values of sensitive query parameters in a URL while
// leaving the rest of the URL readable for forensics.
func scrubURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED:url_parse_error]"
	}
	if u.RawQuery == "" {
		return raw
	}
	changed := false
	params := strings.Split(u.RawQuery, "&")
	for i, param := range params {
		name, _, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}
		if sensitiveQueryParams[strings.ToLower(name)] {
			params[i] = name + "=[REDACTED:query_param]"
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = strings.Join(params, "&")
	return u.String()
}
