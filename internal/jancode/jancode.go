// Package jancode validates and normalizes 13-digit JAN product codes, the
// only barcode format this terminal accepts, from both scanner reads and
// manual entry.
package jancode

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Length is the fixed number of digits in a JAN code.
const Length = 13

var pattern = regexp.MustCompile(`^\d{13}$`)

// InvalidFormatError reports a candidate that is not a 13-digit numeric code.
// It carries the raw text so the operator can see what was misread; a failed
// validation is transient and never ends the scan session.
type InvalidFormatError struct {
	Text   string
	Length int
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid JAN code %q: need %d digits, got %d characters", e.Text, Length, e.Length)
}

// Validate accepts a candidate iff it is exactly 13 decimal digits. No check
// digit verification is performed.
func Validate(text string) (string, error) {
	if !pattern.MatchString(text) {
		return "", &InvalidFormatError{Text: text, Length: utf8.RuneCountInString(text)}
	}
	return text, nil
}

// Sanitize strips every non-digit character and truncates to 13 digits,
// mirroring what the entry field does as the operator types.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(Length)
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == Length {
			break
		}
	}
	return b.String()
}
