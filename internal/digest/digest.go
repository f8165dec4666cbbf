// Package digest builds deterministic, human-readable identifiers from free
// text and auxiliary parameters. Identifiers double as record keys, so the
// same inputs must always produce the same string.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// maxPlainLen is the longest single-line text kept verbatim in a digest.
const maxPlainLen = 80

// prefixLen is how much of the original text is considered when shortening.
const prefixLen = 160

var whitespaceRe = regexp.MustCompile(`\s+`)

// disallowedDelimiters must never appear in a finished digest because they
// are reserved by downstream key encodings.
var disallowedDelimiters = map[string]string{
	"\\": "backslash",
	";":  "semicolon",
}

// Digest returns an identifier in one of two formats:
//
//	shortened_text (param_1, param_2, ...)
//	shortened_text (param_1, param_2, ..., md5)
//
// The text is shortened only when it is multiline or longer than 80
// characters. textParams are visible in the digest; hashParams are folded
// into the trailing MD5 token instead. The MD5 token is appended whenever the
// text was shortened or any hashParams are present.
func Digest(text string, textParams, hashParams []string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("digest text is empty")
	}

	var short string
	truncated := false
	if strings.Contains(text, "\n") || len(text) > maxPlainLen {
		// Take a bounded prefix, collapse whitespace runs to single
		// spaces, then truncate to the plain-text limit.
		short = strings.TrimSpace(text[:min(prefixLen, len(text))])
		short = strings.TrimSpace(whitespaceRe.ReplaceAllString(short, " "))
		if len(short) > maxPlainLen {
			short = strings.TrimSpace(short[:maxPlainLen])
		}
		truncated = true
	} else {
		short = text
	}

	visible := joinParams(textParams)
	hashed := concatParams(hashParams)

	result := short
	if truncated || hashed != "" {
		sum := hashHex(text + hashed)
		if visible != "" {
			result = fmt.Sprintf("%s (%s, %s)", short, visible, sum)
		} else {
			result = fmt.Sprintf("%s (%s)", short, sum)
		}
	} else if visible != "" {
		result = fmt.Sprintf("%s (%s)", short, visible)
	}

	var found []string
	for sub, name := range disallowedDelimiters {
		if strings.Contains(result, sub) {
			found = append(found, name)
		}
	}
	if len(found) > 0 {
		return "", fmt.Errorf("digest %q contains disallowed delimiters: %s",
			result, strings.Join(found, ", "))
	}

	return result, nil
}

// HashHex returns the MD5 hex of the value after lowercasing and removing all
// whitespace, including every line-ending variant. Normalizing first keeps
// hashes stable across operating systems and formatting differences.
func HashHex(value string) string {
	return hashHex(value)
}

func hashHex(value string) string {
	value = strings.ToLower(value)
	value = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "").Replace(value)
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

// joinParams drops empty entries and joins the rest with ", ", preserving
// order.
func joinParams(params []string) string {
	kept := make([]string, 0, len(params))
	for _, p := range params {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func concatParams(params []string) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString(p)
	}
	return b.String()
}
