// Package validate checks and cleans untrusted request fields.
package validate

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"graf/internal/model"
)

// BoundedInt reports whether value is a base-10 integer within [min, max].
// Surrounding whitespace and a leading sign are accepted; leading zeros,
// fractions and exponents are not.
func BoundedInt(value string, min, max int64) bool {
	v, ok := parseInt(value)
	if !ok {
		return false
	}
	return v >= min && v <= max
}

// Int parses a value already accepted by BoundedInt.
func Int(value string) int64 {
	v, _ := parseInt(value)
	return v
}

func parseInt(value string) (int64, bool) {
	s := strings.TrimSpace(value)
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return 0, false
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Sex reports whether value is a known sex code.
func Sex(value string) bool {
	_, ok := model.Sexes[value]
	return ok
}

// legacyQuotes rewrites the quote entities to the spelling stored names
// have always used.
var legacyQuotes = strings.NewReplacer("&#34;", "&quot;", "&#39;", "&#039;")

// SanitizeName trims a display name and escapes markup-significant characters.
// Invalid UTF-8 sequences become U+FFFD, so the result is always storable.
func SanitizeName(raw string) string {
	name := strings.ToValidUTF8(strings.TrimSpace(raw), "\uFFFD")
	return legacyQuotes.Replace(html.EscapeString(name))
}
