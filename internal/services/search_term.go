package services

import (
	"regexp"
	"strings"
)

var (
	partialEmailPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	numericPattern      = regexp.MustCompile(`^[0-9]+$`)
)

// SearchTerm is the classified form of a raw search string. It is derived per
// search call and never persisted. A term carries exactly one primary
// classification: email-ish and numeric terms are never split into name
// parts.
type SearchTerm struct {
	Original       string
	Sanitized      string
	IsEmail        bool
	IsPartialEmail bool
	IsNumeric      bool
	FirstName      string
	LastName       string
	SingleName     string
	Length         int
}

// NormalizeTerm classifies a raw search string. Classification priority:
// email-ish (contains "@", or bare local-part characters with length >= 3),
// then purely numeric, then whitespace-split name. Multi-token names keep the
// first and last token; middle tokens are discarded so "First Middle Last"
// matches on first and surname.
func NormalizeTerm(raw string) SearchTerm {
	sanitized := strings.Join(strings.Fields(raw), " ")
	term := SearchTerm{
		Original:  raw,
		Sanitized: sanitized,
		Length:    len(sanitized),
	}
	if sanitized == "" {
		return term
	}

	switch {
	case strings.Contains(sanitized, "@"):
		term.IsEmail = true
	case numericPattern.MatchString(sanitized):
		term.IsNumeric = true
	case len(sanitized) >= 3 && partialEmailPattern.MatchString(sanitized):
		term.IsPartialEmail = true
	default:
		tokens := strings.Fields(sanitized)
		if len(tokens) == 1 {
			term.SingleName = tokens[0]
		} else {
			term.FirstName = tokens[0]
			term.LastName = tokens[len(tokens)-1]
		}
	}
	return term
}

// EmailIsh reports whether the term should take the email-oriented search
// paths.
func (t SearchTerm) EmailIsh() bool {
	return t.IsEmail || t.IsPartialEmail
}

// HasNamePair reports whether the term split into a first/last pair.
func (t SearchTerm) HasNamePair() bool {
	return t.FirstName != "" && t.LastName != ""
}

// IsValid reports whether the term is searchable. Invalid terms yield empty
// result sets upstream; no error is involved.
func (t SearchTerm) IsValid() bool {
	return t.Sanitized != "" && t.Length >= 2
}
