// Package textmatch normalizes bank descriptions and scores their overlap.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLen drops short tokens such as "DE", "SA", "01".
const MinTokenLen = 3

// noisePrefixes are stripped from the start of a normalized description,
// repeatedly, longest first.
var noisePrefixes = [][]string{
	{"DEBITO", "AUTOMATICO"},
	{"PIX", "ENVIADO"},
	{"PIX", "RECEBIDO"},
	{"PIX", "TRANSF"},
	{"TRANSF", "PIX"},
	{"COMPRA", "CARTAO"},
	{"DEB", "AUT"},
	{"TED"},
	{"DOC"},
	{"PIX"},
	{"TEF"},
	{"DEB"},
}

// Normalize upper-cases s, strips diacritics, replaces punctuation with spaces
// and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(plain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the distinct significant tokens of s after noise removal.
func Tokens(s string) map[string]struct{} {
	fields := stripNoise(strings.Fields(Normalize(s)))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= MinTokenLen {
			out[f] = struct{}{}
		}
	}
	return out
}

func stripNoise(fields []string) []string {
	for {
		stripped := false
		for _, prefix := range noisePrefixes {
			if hasPrefix(fields, prefix) {
				fields = fields[len(prefix):]
				stripped = true
				break
			}
		}
		if !stripped {
			return fields
		}
	}
}

func hasPrefix(fields, prefix []string) bool {
	if len(fields) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if fields[i] != p {
			return false
		}
	}
	return true
}

// Jaccard is |A∩B| / |A∪B| over the token sets of a and b. Zero when either
// side has no significant tokens.
func Jaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// EditRatio is 1 - levenshtein/maxlen over normalized descriptions.
func EditRatio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	maxlen := len([]rune(na))
	if l := len([]rune(nb)); l > maxlen {
		maxlen = l
	}
	if maxlen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(maxlen)
}
