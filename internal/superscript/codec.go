// Package superscript converts footnote-style Unicode superscripts into portable
// {{sup:N}} tokens and back.
//
// Three kinds of superscript usage are told apart:
//   - footnote references become {{sup:N}}, where N is the original ordinal
//   - trademark and registration marks (™ ® ℠) are dropped
//   - units and scientific notation (cm², 10⁶, 10⁻³) are left as literal text
//
// A marker that cannot be classified is encoded as a footnote and reported as ambiguous.
package superscript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// TokenPattern matches a single encoded footnote token.
var TokenPattern = regexp.MustCompile(`\{\{sup:(\d+)\}\}`)

var digitToSuper = [10]rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}

var superToDigit = map[rune]int{
	'⁰': 0, '¹': 1, '²': 2, '³': 3, '⁴': 4,
	'⁵': 5, '⁶': 6, '⁷': 7, '⁸': 8, '⁹': 9,
}

// maxOrdinalDigits bounds footnote ordinals; longer digit runs stay literal.
const maxOrdinalDigits = 4

var marks = map[rune]struct{}{'™': {}, '®': {}, '℠': {}}

// unitWords are the tokens after which a superscript is an exponent, not a footnote.
var unitWords = map[string]struct{}{
	"m": {}, "cm": {}, "mm": {}, "km": {}, "dm": {}, "µm": {}, "μm": {}, "nm": {},
	"ft": {}, "yd": {}, "mi": {}, "g": {}, "kg": {}, "mg": {}, "l": {}, "ml": {},
	"hz": {}, "khz": {}, "mhz": {}, "ghz": {}, "w": {}, "kw": {}, "kwh": {}, "pa": {},
}

// Marker is a footnote reference the codec could not classify with certainty.
type Marker struct {
	Ordinal int
	Offset  int // rune offset in the input
	Glyph   string
	Context string
}

// Result is the outcome of Encode.
type Result struct {
	Text         string
	Footnotes    []int // distinct ordinals in order of first appearance
	Ambiguous    []Marker
	DroppedMarks int
}

// Issues renders ambiguous markers as validation issue strings.
func (r Result) Issues() []string {
	out := make([]string, 0, len(r.Ambiguous))
	for _, m := range r.Ambiguous {
		out = append(out, fmt.Sprintf("ambiguous superscript %s near %q treated as footnote %s", m.Glyph, m.Context, Token(m.Ordinal)))
	}
	return out
}

// Token renders the portable token for ordinal n.
func Token(n int) string {
	return "{{sup:" + strconv.Itoa(n) + "}}"
}

// IsSuperscript reports whether r is a superscript digit or sign.
func IsSuperscript(r rune) bool {
	_, ok := superToDigit[r]
	return ok || r == '⁺' || r == '⁻'
}

// StripMarks removes trademark and registration marks.
func StripMarks(s string) string {
	return strings.Map(func(r rune) rune {
		if _, ok := marks[r]; ok {
			return -1
		}
		return r
	}, s)
}

// Encode tokenizes footnote references and drops trademark marks. It is
// idempotent: encoding already-encoded text returns it unchanged.
func Encode(text string) Result {
	in := []rune(text)
	var (
		out    []rune
		res    Result
		seen   = map[int]bool{}
		offset int
	)

	for i := 0; i < len(in); {
		r := in[i]
		if _, ok := marks[r]; ok {
			res.DroppedMarks++
			i++
			continue
		}
		if !IsSuperscript(r) {
			out = append(out, r)
			i++
			continue
		}

		j := i
		for j < len(in) && IsSuperscript(in[j]) {
			j++
		}
		run := in[i:j]
		offset = i
		i = j

		kind := classify(out, run)
		if kind == literal {
			out = append(out, run...)
			continue
		}

		n := ordinal(run)
		out = append(out, []rune(Token(n))...)
		if !seen[n] {
			seen[n] = true
			res.Footnotes = append(res.Footnotes, n)
		}
		if kind == ambiguous {
			res.Ambiguous = append(res.Ambiguous, Marker{
				Ordinal: n,
				Offset:  offset,
				Glyph:   string(run),
				Context: contextBefore(in, offset, 24),
			})
		}
	}

	res.Text = string(out)
	return res
}

// Decode renders every {{sup:N}} token back to Unicode superscript digits.
func Decode(text string) string {
	return TokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		m := TokenPattern.FindStringSubmatch(tok)
		var b strings.Builder
		for _, d := range m[1] {
			b.WriteRune(digitToSuper[d-'0'])
		}
		return b.String()
	})
}

// Raise renders the ASCII digits of s as superscript glyphs and leaves other runes alone.
func Raise(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(digitToSuper[r-'0'])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens returns the ordinals of every token in s, in order.
func Tokens(s string) []int {
	matches := TokenPattern.FindAllStringSubmatch(s, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// LeadingToken returns the ordinal a legal reference starts with.
func LeadingToken(s string) (int, bool) {
	loc := TokenPattern.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[loc[2]:loc[3]])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CrossReferenceIssues checks that every token used in content has exactly one
// legal reference starting with the same token.
func CrossReferenceIssues(content, legal []string) []string {
	starts := map[int]int{}
	for _, l := range legal {
		if n, ok := LeadingToken(l); ok {
			starts[n]++
		}
	}

	var issues []string
	checked := map[int]bool{}
	for _, c := range content {
		for _, n := range Tokens(c) {
			if checked[n] {
				continue
			}
			checked[n] = true
			switch starts[n] {
			case 1:
			case 0:
				issues = append(issues, fmt.Sprintf("footnote %s has no matching legal reference", Token(n)))
			default:
				issues = append(issues, fmt.Sprintf("footnote %s matches %d legal references", Token(n), starts[n]))
			}
		}
	}
	return issues
}

type category int

const (
	footnote category = iota
	ambiguous
	literal
)

// classify decides what a superscript run means from the text already emitted before it.
func classify(before []rune, run []rune) category {
	for _, r := range run {
		if r == '⁺' || r == '⁻' {
			return literal
		}
	}
	if len(run) > 1 && run[0] == '⁰' {
		return literal
	}
	if len(run) > maxOrdinalDigits {
		return literal
	}

	// Start of line (ignoring indentation) is a footnote definition.
	k := len(before) - 1
	for k >= 0 && (before[k] == ' ' || before[k] == '\t') {
		k--
	}
	if k < 0 || before[k] == '\n' {
		return footnote
	}

	prev := before[len(before)-1]
	switch {
	case unicode.IsSpace(prev):
		return ambiguous
	case unicode.IsDigit(prev):
		if precedingDigits(before) == "10" {
			return literal
		}
		return ambiguous
	case unicode.IsLetter(prev):
		if isUnit(precedingWord(before)) {
			return literal
		}
		return footnote
	case strings.ContainsRune(`.,;:!?%)]}"'»”’*`, prev):
		return footnote
	default:
		return ambiguous
	}
}

func precedingDigits(before []rune) string {
	k := len(before)
	for k > 0 && unicode.IsDigit(before[k-1]) {
		k--
	}
	if k > 0 && (unicode.IsLetter(before[k-1]) || before[k-1] == '.') {
		return ""
	}
	return string(before[k:])
}

func precedingWord(before []rune) string {
	k := len(before)
	for k > 0 && (unicode.IsLetter(before[k-1]) || before[k-1] == '/') {
		k--
	}
	return string(before[k:])
}

// isUnit accepts "m", "cm", "m/s" style tokens; the part after the last slash
// may also be "s" (m/s²).
func isUnit(word string) bool {
	w := strings.ToLower(word)
	if _, ok := unitWords[w]; ok {
		return true
	}
	if i := strings.LastIndexByte(w, '/'); i >= 0 {
		head, tail := w[:i], w[i+1:]
		if tail == "s" || tail == "h" {
			return true
		}
		if _, ok := unitWords[tail]; ok && head != "" {
			return true
		}
	}
	return false
}

func ordinal(run []rune) int {
	n := 0
	for _, r := range run {
		n = n*10 + superToDigit[r]
	}
	return n
}

func contextBefore(in []rune, offset, width int) string {
	start := offset - width
	if start < 0 {
		start = 0
	}
	return strings.TrimSpace(string(in[start:offset]))
}
