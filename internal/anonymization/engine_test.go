package anonymization

import (
	"strings"
	"testing"
)

func TestPseudonymDeterministic(t *testing.T) {
	e := NewEngine("salt-a")

	first := e.Pseudonym("patient-42")
	second := e.Pseudonym("patient-42")
	if first != second {
		t.Errorf("pseudonym not deterministic: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "anon-") {
		t.Errorf("pseudonym %s missing anon- prefix", first)
	}
	if strings.Contains(first, "patient-42") {
		t.Error("pseudonym leaks the original value")
	}
}

func TestPseudonymSaltChangesOutput(t *testing.T) {
	a := NewEngine("salt-a").Pseudonym("patient-42")
	b := NewEngine("salt-b").Pseudonym("patient-42")
	if a == b {
		t.Error("different salts produced the same pseudonym")
	}
}

func TestPseudonymIdempotent(t *testing.T) {
	e := NewEngine("salt-a")
	once := e.Pseudonym("patient-42")
	twice := e.Pseudonym(once)
	if once != twice {
		t.Errorf("re-masking changed the value: %s vs %s", once, twice)
	}
}

func TestPseudonymEmpty(t *testing.T) {
	if got := NewEngine("s").Pseudonym(""); got != "" {
		t.Errorf("empty input masked to %q, want empty", got)
	}
}

func TestMaskValueTypes(t *testing.T) {
	e := NewEngine("salt-a")

	if got := e.MaskValue(nil); got != nil {
		t.Errorf("nil masked to %v, want nil", got)
	}
	if got := e.MaskValue(12345); got != e.Pseudonym("12345") {
		t.Errorf("numeric mask %v differs from equivalent string mask", got)
	}
	if got := e.MaskValue("mrn-1"); got != e.Pseudonym("mrn-1") {
		t.Errorf("string mask = %v", got)
	}
}

func TestGeneralizeDate(t *testing.T) {
	e := NewEngine("s")

	tests := []struct {
		in   string
		want string
	}{
		{"1985-06-15", "1985"},
		{"1985-06", "1985"},
		{"1985", "1985"},
		{"1920-01-01", "1900"}, // 90+ bucket
		{"not a date", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := e.GeneralizeDate(tt.in); got != tt.want {
			t.Errorf("GeneralizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateZip(t *testing.T) {
	e := NewEngine("s")

	if got := e.TruncateZip("90210"); got != "90200" {
		t.Errorf("TruncateZip = %q, want 90200", got)
	}
	if got := e.TruncateZip("12"); got != "" {
		t.Errorf("short zip = %q, want empty", got)
	}
}

func TestRedactText(t *testing.T) {
	e := NewEngine("s")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ssn", "SSN 123-45-6789 on file", "SSN [SSN REDACTED] on file"},
		{"phone", "call 555-867-5309", "call [PHONE REDACTED]"},
		{"email", "send to jane.doe@example.com please", "send to [EMAIL REDACTED] please"},
		{"slash date", "seen 3/14/2026", "seen [DATE REDACTED]"},
		{"iso date", "seen 2026-03-14", "seen [DATE REDACTED]"},
		{"mrn", "record MRN: 998877", "record [MRN REDACTED]"},
		{"age", "patient is 87 years old", "patient is [AGE REDACTED]"},
		{"clean", "no identifiers here", "no identifiers here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.RedactText(tt.in); got != tt.want {
				t.Errorf("RedactText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactTextIdempotent(t *testing.T) {
	e := NewEngine("s")
	once := e.RedactText("SSN 123-45-6789, call 555-867-5309")
	twice := e.RedactText(once)
	if once != twice {
		t.Errorf("redaction not idempotent: %q vs %q", once, twice)
	}
}
