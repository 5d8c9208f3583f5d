// Package contact extracts dialable phone numbers from free text and renders
// them for display.
package contact

import (
	"strings"
	"unicode"
)

const (
	minDigits = 8
	maxDigits = 15
)

// separators collapsed to a single space before tokenizing.
var separators = strings.NewReplacer(
	"\r\n", " ", "\r", " ", "\n", " ",
	",", " ", "；", " ", ";", " ", "、", " ", "|", " ",
	"，", " ", "｜", " ",
)

// ParseNumbers returns the phone numbers found in input, in first-seen order
// and without duplicates. A token counts as a number when it holds between 8
// and 15 digits, not counting a leading '+'.
func ParseNumbers(input string) []string {
	if input == "" {
		return nil
	}
	cleaned := separators.Replace(input)

	// Everything except digits, '+' and whitespace is noise (labels, dashes,
	// emoji, parentheses).
	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		switch {
		case isASCIIDigit(r), r == '+':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	var (
		numbers []string
		seen    = map[string]struct{}{}
	)
	for _, tok := range strings.Fields(b.String()) {
		n := normalizeToken(tok)
		d := digitCount(n)
		if d < minDigits || d > maxDigits {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers
}

// normalizeToken keeps digits and a single leading '+'.
func normalizeToken(tok string) string {
	var b strings.Builder
	for i, r := range tok {
		if isASCIIDigit(r) || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatDisplay groups a normalized number for reading. It never changes the
// dialable value.
//
//	+886912345678 -> +886 912 345 678
//	0912345678    -> 0912 345 678
//	others        -> runs of three digits
func FormatDisplay(num string) string {
	if num == "" {
		return num
	}
	if rest, ok := strings.CutPrefix(num, "+886"); ok {
		return groupTaiwan(rest)
	}
	if strings.HasPrefix(num, "886") && len(num) > 9 {
		return groupTaiwan(num[3:])
	}
	if len(num) == 10 && strings.HasPrefix(num, "09") {
		return num[:4] + " " + num[4:7] + " " + num[7:]
	}
	return groupByThree(num)
}

func groupTaiwan(rest string) string {
	parts := []string{"+886"}
	for _, p := range []string{slice(rest, 0, 3), slice(rest, 3, 6), slice(rest, 6, len(rest))} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func slice(s string, from, to int) string {
	if from > len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

// groupByThree inserts a space after every three consecutive digits that are
// followed by another digit.
func groupByThree(num string) string {
	var b strings.Builder
	run := 0
	for i := 0; i < len(num); i++ {
		c := num[i]
		b.WriteByte(c)
		if c < '0' || c > '9' {
			run = 0
			continue
		}
		run++
		if run == 3 && i+1 < len(num) && num[i+1] >= '0' && num[i+1] <= '9' {
			b.WriteByte(' ')
			run = 0
		}
	}
	return b.String()
}

// DialURI builds a tel: link from a raw directory phone string. Extension
// markers ('#') become ',' so dialers pause before sending them.
func DialURI(raw string) string {
	var b strings.Builder
	b.WriteString("tel:")
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case isASCIIDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == '#':
			b.WriteByte(',')
		}
	}
	return b.String()
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if isASCIIDigit(r) {
			n++
		}
	}
	return n
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
