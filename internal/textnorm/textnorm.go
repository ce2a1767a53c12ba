// Package textnorm cleans extracted and OCR-recognized text before it is
// tagged, embedded and indexed.
//
// Both transforms are deterministic and idempotent: applying them to their own
// output returns the same string.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinOCRLineLength is the shortest OCR line, in runes, that survives CleanOCR.
const MinOCRLineLength = 3

var (
	// Escapes left behind by PDF text layers (/uni0410) and JSON-ish dumps (\u0410).
	unicodeEscapeRe = regexp.MustCompile(`(?:/uni|\\u)([0-9A-Fa-f]{4})`)

	disallowedRe     = regexp.MustCompile(`[^\p{Latin}\p{Cyrillic}0-9.,\s]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	inlineSpaceRe    = regexp.MustCompile(`[\t\f\r\v ]+`)
	spaceBeforePunct = regexp.MustCompile(` +([.,])`)
)

// DecodeUnicodeEscapes replaces literal /uniXXXX and \uXXXX sequences with the
// characters they encode.
func DecodeUnicodeEscapes(text string) string {
	return unicodeEscapeRe.ReplaceAllStringFunc(text, func(m string) string {
		code, err := strconv.ParseUint(m[len(m)-4:], 16, 32)
		if err != nil {
			return m
		}
		r := rune(code)
		if !utf8.ValidRune(r) {
			return ""
		}
		return string(r)
	})
}

// Normalize cleans body text: escapes are decoded, everything except Latin and
// Cyrillic letters, digits, '.', ',' and whitespace is removed, and whitespace
// runs collapse to a single space.
func Normalize(text string) string {
	text = strip(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanOCR is the OCR variant of Normalize. Line structure is kept; within a
// line, spaces before punctuation and isolated single letters are removed, and
// lines shorter than MinOCRLineLength runes are dropped.
func CleanOCR(text string) string {
	text = strip(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = inlineSpaceRe.ReplaceAllString(line, " ")
		line = spaceBeforePunct.ReplaceAllString(line, "$1")
		line = dropSingleLetters(line)
		if utf8.RuneCountInString(line) < MinOCRLineLength {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func strip(text string) string {
	text = DecodeUnicodeEscapes(text)
	text = norm.NFC.String(text)
	return disallowedRe.ReplaceAllString(text, "")
}

// dropSingleLetters removes tokens consisting of exactly one letter and
// rejoins the rest with single spaces.
func dropSingleLetters(line string) string {
	fields := strings.Fields(line)
	kept := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) == 1 && isLetter(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func isLetter(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != '.' && r != ',' && (r < '0' || r > '9')
}
