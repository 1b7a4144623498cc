// Package text prepares user-entered text for speech synthesis.
//
// The demo accepts text in several languages, so most steps are
// language-neutral. Abbreviation and number expansion only run for English.
package text

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// NumberBaseTen represents the base for decimal number system.
	NumberBaseTen = 10
	// NumberBaseTwenty represents the boundary for teen numbers.
	NumberBaseTwenty = 20
	// NumberBaseHundred represents the base for hundreds.
	NumberBaseHundred = 100
	// NumberBaseThousand represents the base for thousands.
	NumberBaseThousand = 1000
	// MaxNumberForWords represents the maximum number that can be converted to words.
	MaxNumberForWords = 999999
	// MaxTextLength is the longest input, in characters, accepted by Process.
	MaxTextLength = 4096
)

const (
	englishLanguage        = "en"
	numberRegexPattern     = `\d+`
	whitespaceRegexPattern = `\s+`
	bulletChars            = "•●▪‣◦*-"
	errFmtTextTooLong      = "%w: %d characters, limit %d"
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Input errors.
var (
	ErrTextEmpty   = errors.New("text cannot be empty")
	ErrTextTooLong = errors.New("text is too long")
)

// Preprocessor normalizes text before it is sent to a synthesizer.
// It is immutable after construction and safe for concurrent use.
type Preprocessor struct {
	numberPattern        *regexp.Regexp
	whitespacePattern    *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewPreprocessor creates a new text preprocessor with compiled patterns and replacers.
func NewPreprocessor() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
		"e.g.", "for example",
		"i.e.", "that is",
		"vs.", "versus",
	}

	return &Preprocessor{
		numberPattern:        regexp.MustCompile(numberRegexPattern),
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer: strings.NewReplacer(
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`, "„", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Process normalizes text for speech in the given language and returns
// ErrTextEmpty if nothing speakable is left.
func (p *Preprocessor) Process(input, language string) (string, error) {
	length := utf8.RuneCountInString(input)
	if length > MaxTextLength {
		return "", fmt.Errorf(errFmtTextTooLong, ErrTextTooLong, length, MaxTextLength)
	}

	result := p.PreprocessText(input, language)
	if result == "" {
		return "", ErrTextEmpty
	}

	return result, nil
}

// PreprocessText performs the normalization pipeline without validation.
func (p *Preprocessor) PreprocessText(input, language string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	normalized := p.punctuationReplacer.Replace(input)

	if language == englishLanguage {
		normalized = p.abbreviationReplacer.Replace(normalized)
		normalized = p.normalizeNumbers(normalized)
	}

	normalized = p.joinLines(normalized)
	normalized = collapseRepeatedPunctuation(normalized)
	normalized = p.whitespacePattern.ReplaceAllString(normalized, " ")

	return ensureProperSentenceEnding(normalized)
}

// joinLines turns each non-empty line, stripped of list bullets, into its own
// sentence so the engine pauses between them.
func (p *Preprocessor) joinLines(input string) string {
	lines := strings.FieldsFunc(input, func(r rune) bool { return r == '\n' || r == '\r' })
	if len(lines) <= 1 {
		return strings.TrimSpace(input)
	}

	sentences := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), bulletChars))
		if line == "" {
			continue
		}

		sentences = append(sentences, ensureProperSentenceEnding(line))
	}

	return strings.Join(sentences, " ")
}

// normalizeNumbers finds all integers in the text and converts them to words.
func (p *Preprocessor) normalizeNumbers(input string) string {
	return p.numberPattern.ReplaceAllStringFunc(input, func(s string) string {
		num, err := strconv.Atoi(s)
		if err != nil {
			return s
		}

		return integerToWords(num)
	})
}

// collapseRepeatedPunctuation squeezes runs of the same punctuation mark,
// keeping "..." intact.
func collapseRepeatedPunctuation(input string) string {
	var (
		builder strings.Builder
		last    rune
		run     int
	)

	builder.Grow(len(input))

	for _, char := range input {
		if unicode.IsPunct(char) && char == last {
			run++
			if char != '.' || run > len(ellipsis) {
				continue
			}
		} else {
			run = 1
		}

		builder.WriteRune(char)
		last = char
	}

	return builder.String()
}

// ensureProperSentenceEnding appends a full stop unless text already ends a sentence.
func ensureProperSentenceEnding(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(trimmed)

	switch lastChar {
	case '.', '!', '?', '"', '\'':
		return trimmed
	case ',', ';', ':', '-':
		return strings.TrimRight(trimmed, ",;:- ") + "."
	default:
		return trimmed + "."
	}
}

type numberConverter struct {
	ones  []string
	teens []string
	tens  []string
}

func newNumberConverter() *numberConverter {
	return &numberConverter{
		ones: []string{
			"", "one", "two", "three", "four", "five",
			"six", "seven", "eight", "nine",
		},
		teens: []string{
			"ten", "eleven", "twelve", "thirteen", "fourteen",
			"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
		},
		tens: []string{
			"", "", "twenty", "thirty", "forty", "fifty",
			"sixty", "seventy", "eighty", "ninety",
		},
	}
}

func (nc *numberConverter) convertUnderHundred(num int) string {
	switch {
	case num < NumberBaseTen:
		return nc.ones[num]
	case num < NumberBaseTwenty:
		return nc.teens[num-NumberBaseTen]
	}

	result := nc.tens[num/NumberBaseTen]
	if num%NumberBaseTen > 0 {
		result += " " + nc.ones[num%NumberBaseTen]
	}

	return result
}

func (nc *numberConverter) convertUnderThousand(num int) string {
	if num < NumberBaseHundred {
		return nc.convertUnderHundred(num)
	}

	result := nc.ones[num/NumberBaseHundred] + " hundred"
	if remainder := num % NumberBaseHundred; remainder > 0 {
		result += " " + nc.convertUnderHundred(remainder)
	}

	return result
}

// integerToWords spells out 0..MaxNumberForWords in English and leaves
// anything else as digits.
func integerToWords(number int) string {
	if number < 0 || number > MaxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	converter := newNumberConverter()

	var parts []string

	if thousands := number / NumberBaseThousand; thousands > 0 {
		parts = append(parts, converter.convertUnderThousand(thousands)+" thousand")
	}

	if remaining := number % NumberBaseThousand; remaining > 0 {
		parts = append(parts, converter.convertUnderThousand(remaining))
	}

	return strings.Join(parts, " ")
}
