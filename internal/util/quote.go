package util

import (
	"strings"
	"unicode"

	"github.com/lib/pq"
)

// PostgreSQL reserved words that need quoting
var reservedWords = map[string]bool{
	"user":   true,
	"order":  true,
	"group":  true,
	"select": true,
	"from":   true,
	"where":  true,
	"table":  true,
	"check":  true,
	"column": true,
	"grant":  true,
	"limit":  true,
	"offset": true,
	// Add more as needed
}

// NeedsQuoting checks if an identifier needs to be quoted
func NeedsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	// Check if it's a reserved word
	if reservedWords[strings.ToLower(identifier)] {
		return true
	}

	// Check if it contains uppercase letters (PostgreSQL folds unquoted to lowercase)
	for _, r := range identifier {
		if unicode.IsUpper(r) {
			return true
		}
	}

	// Check if it starts with non-letter or contains special characters
	for i, r := range identifier {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
	}

	return false
}

// QuoteIdentifier adds quotes to an identifier if needed. Unquoted output keeps
// rendered definitions textually matchable against reference signatures.
func QuoteIdentifier(identifier string) string {
	if NeedsQuoting(identifier) {
		return pq.QuoteIdentifier(identifier)
	}
	return identifier
}

// QuoteQualified quotes each part of a dotted name, e.g. public.Orders -> public."Orders"
func QuoteQualified(qualified string) string {
	parts := strings.Split(qualified, ".")
	for i, part := range parts {
		parts[i] = QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// QuoteLiteral quotes a string literal
func QuoteLiteral(literal string) string {
	return pq.QuoteLiteral(literal)
}

// ArrayLiteral formats values as a quoted Postgres text array literal, e.g. '{a,b}'
func ArrayLiteral(values []string) string {
	return QuoteLiteral("{" + strings.Join(values, ",") + "}")
}
