package anonymization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// pseudonymPrefix marks already-masked values so re-applying a mask is
// a no-op. Masking must be idempotent: flushed batches may be
// re-anonymized downstream and must not drift.
const pseudonymPrefix = "anon-"

// Engine produces deterministic, irreversible-in-practice masks for
// identifying fields. The same input and salt always yield the same
// mask, which keeps de-duplication possible without re-identification.
type Engine struct {
	salt string
}

// NewEngine creates an anonymization engine with the given salt.
func NewEngine(salt string) *Engine {
	return &Engine{salt: salt}
}

// Pseudonym replaces an identifier with a salted SHA-256 pseudonym.
// Already-masked values pass through unchanged.
func (e *Engine) Pseudonym(original string) string {
	if original == "" {
		return ""
	}
	if strings.HasPrefix(original, pseudonymPrefix) {
		return original
	}

	h := sha256.New()
	h.Write([]byte(e.salt + original))
	hash := hex.EncodeToString(h.Sum(nil))

	return pseudonymPrefix + hash[:16]
}

// MaskValue masks an arbitrary payload value. Non-string values are
// rendered before hashing so numeric identifiers mask stably too.
func (e *Engine) MaskValue(v any) any {
	switch s := v.(type) {
	case string:
		return e.Pseudonym(s)
	case nil:
		return nil
	default:
		return e.Pseudonym(fmt.Sprintf("%v", s))
	}
}

// GeneralizeDate reduces a date to its year, the HIPAA Safe Harbor
// granularity. Accepts full dates, year-month, or bare years; unknown
// formats are dropped entirely.
func (e *Engine) GeneralizeDate(dateStr string) string {
	if dateStr == "" {
		return ""
	}

	layouts := []string{"2006-01-02", "2006-01", "2006"}
	for _, l := range layouts {
		if parsed, err := time.Parse(l, dateStr); err == nil {
			// Ages of 90 and over generalize to a single bucket.
			age := time.Since(parsed).Hours() / 24 / 365
			if age >= 90 {
				return "1900"
			}
			return parsed.Format("2006")
		}
	}
	return ""
}

// TruncateZip keeps the first three digits of a postal code, zero
// padding the rest.
func (e *Engine) TruncateZip(zip string) string {
	if len(zip) < 3 {
		return ""
	}
	return zip[:3] + "00"
}

var redactPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// SSN
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN REDACTED]"},
	// Phone numbers
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "[PHONE REDACTED]"},
	// Email addresses
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), "[EMAIL REDACTED]"},
	// Dates
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), "[DATE REDACTED]"},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "[DATE REDACTED]"},
	// MRN patterns
	{regexp.MustCompile(`\bMRN[:\s]*\d+\b`), "[MRN REDACTED]"},
	// Age with years
	{regexp.MustCompile(`\b\d{1,3}\s*(?:year|yr)s?\s*old\b`), "[AGE REDACTED]"},
}

// RedactText redacts identifying fragments from free text. The
// replacement tokens never match the patterns, so redaction is
// idempotent.
func (e *Engine) RedactText(text string) string {
	result := text
	for _, p := range redactPatterns {
		result = p.pattern.ReplaceAllString(result, p.replacement)
	}
	return result
}
