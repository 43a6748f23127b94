// Package textprep normalizes input text before it reaches the chunker,
// so citation markers, stray whitespace, and smart punctuation picked up
// from pasted documents don't leak into synthesized speech or confuse the
// timing normalizer's sentence-boundary scan.
package textprep

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	urlPattern        = `https?://[^\s]+`
	emailPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	referencePattern  = `(?:\[\d+\]|\(\d+\)|[¹²³⁴⁵⁶⁷⁸⁹⁰]+)`
	citationPattern   = `\([^)]*\d{4}[^)]*\)|\b\w+\s+et\s+al\.`
	whitespacePattern = `\s+`
)

const (
	urlPlaceholderFormat   = "__URL_PLACEHOLDER_%d__"
	emailPlaceholderFormat = "__EMAIL_PLACEHOLDER_%d__"
)

const (
	emDash      = "—"
	enDash      = "–"
	figureDash  = "‒"
	ellipsis    = "..."
	ellipsisChr = "…"
	crlf        = "\r\n"
	lf          = "\n"
	tab         = "\t"
)

// Preprocessor normalizes raw input text ahead of chunking. It never
// changes word choice (no number-to-words or phoneme conversion, since
// every provider this package talks to accepts and normalizes plain
// text itself); it only removes document cruft and standardizes
// whitespace and punctuation so chunk/sentence boundaries are clean.
type Preprocessor struct {
	urlRe            *regexp.Regexp
	emailRe          *regexp.Regexp
	referenceRe      *regexp.Regexp
	citationRe       *regexp.Regexp
	whitespaceRe     *regexp.Regexp
	abbreviationRepl *strings.Replacer
}

// New builds a Preprocessor with its patterns precompiled.
func New() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
	}

	return &Preprocessor{
		urlRe:            regexp.MustCompile(urlPattern),
		emailRe:          regexp.MustCompile(emailPattern),
		referenceRe:      regexp.MustCompile(referencePattern),
		citationRe:       regexp.MustCompile(citationPattern),
		whitespaceRe:     regexp.MustCompile(whitespacePattern),
		abbreviationRepl: strings.NewReplacer(abbreviations...),
	}
}

// Process runs the full normalization pipeline: expand a small set of
// title abbreviations (so the sentence estimator's period-based split
// doesn't mistake "Dr." for a sentence end), preserve URLs/emails through
// the cleanup steps, strip citation/reference markers, collapse
// whitespace, normalize quotes and dashes, and ensure the text ends on
// sentence-ending punctuation.
func (p *Preprocessor) Process(text string) string {
	if text == "" {
		return text
	}

	normalized := p.abbreviationRepl.Replace(text)

	preserved, placeholders := p.preserveTokens(normalized)

	cleaned := p.referenceRe.ReplaceAllString(preserved, "")
	cleaned = p.citationRe.ReplaceAllString(cleaned, "")
	cleaned = p.normalizeWhitespace(cleaned)

	restored := cleaned
	for placeholder, original := range placeholders {
		restored = strings.ReplaceAll(restored, placeholder, original)
	}

	return p.finalCleanup(restored)
}

func (p *Preprocessor) preserveTokens(text string) (string, map[string]string) {
	placeholders := make(map[string]string)
	i := 0

	replace := func(re *regexp.Regexp, format string) {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			placeholder := fmt.Sprintf(format, i)
			placeholders[placeholder] = match
			i++

			return placeholder
		})
	}

	replace(p.urlRe, urlPlaceholderFormat)
	replace(p.emailRe, emailPlaceholderFormat)

	return text, placeholders
}

func (p *Preprocessor) normalizeWhitespace(text string) string {
	text = p.whitespaceRe.ReplaceAllString(text, " ")

	replacer := strings.NewReplacer(crlf, " ", lf, " ", tab, " ")
	text = replacer.Replace(text)

	return strings.TrimSpace(text)
}

func (p *Preprocessor) finalCleanup(text string) string {
	text = removeExcessivePunctuation(text)
	text = normalizeQuotesAndDashes(text)

	return ensureProperSentenceEnding(text)
}

func removeExcessivePunctuation(text string) string {
	var (
		result       []rune
		lastWasPunct bool
	)

	for _, char := range text {
		isPunct := unicode.IsPunct(char)
		if isPunct && !lastWasPunct || !isPunct {
			result = append(result, char)
		}

		lastWasPunct = isPunct
	}

	return string(result)
}

func normalizeQuotesAndDashes(text string) string {
	replacer := strings.NewReplacer(
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChr, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)

	return replacer.Replace(text)
}

func ensureProperSentenceEnding(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(trimmed)
	if !unicode.IsPunct(lastChar) {
		return trimmed + "."
	}

	switch lastChar {
	case '.', '!', '?':
		return trimmed
	default:
		return trimmed + "."
	}
}
