package services

import "testing"

func TestNormalizeTerm_Classification(t *testing.T) {
	cases := []struct {
		name  string
		input string
		check func(t *testing.T, term SearchTerm)
	}{
		{
			name:  "full email",
			input: "jane.doe@example.com",
			check: func(t *testing.T, term SearchTerm) {
				if !term.IsEmail {
					t.Fatalf("expected IsEmail")
				}
				if term.FirstName != "" || term.LastName != "" || term.SingleName != "" {
					t.Fatalf("email terms must not split into names: %+v", term)
				}
			},
		},
		{
			name:  "partial email",
			input: "jane.doe",
			check: func(t *testing.T, term SearchTerm) {
				if !term.IsPartialEmail {
					t.Fatalf("expected IsPartialEmail, got %+v", term)
				}
				if term.IsEmail || term.IsNumeric {
					t.Fatalf("expected single classification, got %+v", term)
				}
			},
		},
		{
			name:  "numeric",
			input: "12345",
			check: func(t *testing.T, term SearchTerm) {
				if !term.IsNumeric {
					t.Fatalf("expected IsNumeric, got %+v", term)
				}
				if term.IsPartialEmail {
					t.Fatalf("numeric terms must not classify as partial email")
				}
			},
		},
		{
			name:  "name pair",
			input: "John Smith",
			check: func(t *testing.T, term SearchTerm) {
				if term.FirstName != "John" || term.LastName != "Smith" {
					t.Fatalf("unexpected name split: %+v", term)
				}
			},
		},
		{
			name:  "middle token discarded",
			input: "John Middle Smith",
			check: func(t *testing.T, term SearchTerm) {
				if term.FirstName != "John" || term.LastName != "Smith" {
					t.Fatalf("expected first and last token, got %+v", term)
				}
			},
		},
		{
			name:  "single short token",
			input: "Jo Anne",
			check: func(t *testing.T, term SearchTerm) {
				if !term.HasNamePair() {
					t.Fatalf("expected name pair for two tokens, got %+v", term)
				}
			},
		},
		{
			name:  "whitespace collapsed",
			input: "  John   Smith  ",
			check: func(t *testing.T, term SearchTerm) {
				if term.Sanitized != "John Smith" {
					t.Fatalf("unexpected sanitized value %q", term.Sanitized)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, NormalizeTerm(tc.input))
		})
	}
}

func TestSearchTerm_IsValid(t *testing.T) {
	if NormalizeTerm("a").IsValid() {
		t.Fatalf("single character terms must be invalid")
	}
	if NormalizeTerm("  ").IsValid() {
		t.Fatalf("blank terms must be invalid")
	}
	if !NormalizeTerm("ab").IsValid() {
		t.Fatalf("two character terms must be valid")
	}
}
