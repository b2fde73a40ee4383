package action

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	minBucketNameLen = 3
	maxBucketNameLen = 63
)

var bucketNameGrammar = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// ValidBucketName reports whether name is lowercase ASCII letters, digits and
// hyphens, starts and ends alphanumeric, and is 3 to 63 characters long.
func ValidBucketName(name string) bool {
	if len(name) < minBucketNameLen || len(name) > maxBucketNameLen {
		return false
	}
	return bucketNameGrammar.MatchString(name)
}

// bucketNamePatterns are tried in order; each capture is validated before use.
var bucketNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"bucket_name"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)'bucket_name'\s*:\s*'([^']+)'`),
	regexp.MustCompile(`(?i)名称\s*[：:]\s*["“']([^"”']+)["”']`),
	regexp.MustCompile(`(?i)名称\s*[：:]\s*([a-z0-9][a-z0-9-]{1,61}[a-z0-9])`),
	regexp.MustCompile(`(?i)名称(?:为|是)?\s*["“']([^"”']+)["”']`),
	regexp.MustCompile(`(?i)名称(?:为|是)?\s*([a-z0-9][a-z0-9-]{1,61}[a-z0-9])`),
	regexp.MustCompile(`(?i)\bname\s*(?:[:=]|is)\s*["“']([^"”']+)["”']`),
	regexp.MustCompile(`(?i)\bname\s*(?:[:=]|is)\s*([a-z0-9][a-z0-9-]{1,61}[a-z0-9])`),
	regexp.MustCompile(`(?i)\bnamed\s+["“']?([a-z0-9][a-z0-9-]{1,61}[a-z0-9])`),
}

// quotedBucketName matches any quoted token; a quoted word is an explicit
// choice, so it needs no digit or hyphen.
var quotedBucketName = regexp.MustCompile(`["“']([a-z0-9][a-z0-9-]{1,61}[a-z0-9])["”']`)

// ExtractBucketName recovers a bucket name from free text. It never invents a
// name: when nothing in text validates, ok is false.
func ExtractBucketName(text string) (name string, ok bool) {
	for _, re := range bucketNamePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if candidate := strings.TrimSpace(m[1]); ValidBucketName(candidate) {
				return candidate, true
			}
		}
	}
	for _, m := range quotedBucketName.FindAllStringSubmatch(text, -1) {
		if ValidBucketName(m[1]) {
			return m[1], true
		}
	}
	return bareBucketName(text)
}

// bareBucketName accepts the whole payload when it is itself a single valid
// name, otherwise the first token that validates and carries a digit or hyphen.
// Plain dictionary words ("bucket", "private") are never taken as names.
func bareBucketName(text string) (string, bool) {
	whole := strings.Trim(strings.TrimSpace(text), `"'“”`)
	if ValidBucketName(whole) {
		return whole, true
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r > unicode.MaxASCII || !(r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	for _, tok := range tokens {
		if ValidBucketName(tok) && strings.ContainsAny(tok, "-0123456789") {
			return tok, true
		}
	}
	return "", false
}
