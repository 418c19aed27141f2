package post

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cleaner normalizes post text for analysis. Replacement fields are used
// verbatim; an empty replacement removes the match.
type Cleaner struct {
	FixUnicode     bool
	ToASCII        bool
	Lower          bool
	NoLineBreaks   bool
	NoURLs         bool
	NoEmails       bool
	NoPhoneNumbers bool
	NoNumbers      bool
	NoCurrency     bool
	NoPunct        bool
	NoEmoji        bool

	ReplaceURL      string
	ReplaceEmail    string
	ReplacePhone    string
	ReplaceNumber   string
	ReplaceCurrency string
	ReplacePunct    string
}

// DefaultCleaner mirrors the settings the collector has always used for text
// analysis: URLs, emails and punctuation removed, phone numbers tokenized,
// numbers and currency left alone.
func DefaultCleaner() *Cleaner {
	return &Cleaner{
		FixUnicode:      true,
		ToASCII:         true,
		Lower:           true,
		NoLineBreaks:    true,
		NoURLs:          true,
		NoEmails:        true,
		NoPhoneNumbers:  true,
		NoPunct:         true,
		NoEmoji:         true,
		ReplacePhone:    "<PHONE>",
		ReplaceNumber:   "<NUMBER>",
		ReplaceCurrency: "<CUR>",
	}
}

var (
	urlRe      = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)\S+`)
	emailRe    = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe    = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	numberRe   = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)
	currencyRe = regexp.MustCompile(`\p{Sc}`)
	tokenRe    = regexp.MustCompile(`<[A-Z]+>`)
	spaceRe    = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	breakRe    = regexp.MustCompile(`\r\n|\r|\n|\x{2028}|\x{2029}`)
)

var emoji = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0x2b00, Hi: 0x2bff, Stride: 1},
		{Lo: 0xfe0e, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1faff, Stride: 1},
		{Lo: 0xe0020, Hi: 0xe007f, Stride: 1},
	},
}

// asciiFold covers letters that do not decompose into a base letter plus marks
var asciiFold = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "đ", "d", "Đ", "D",
	"þ", "th", "Þ", "TH", "ð", "d", "ı", "i",
	"‘", "'", "’", "'", "‚", "'", "“", `"`, "”", `"`, "„", `"`,
	"–", "-", "—", "-", "…", "...", "\u00a0", " ",
)

// Clean applies the enabled steps to text
func (c *Cleaner) Clean(text string) string {
	if c.FixUnicode {
		text = norm.NFC.String(text)
	}
	if c.NoEmoji {
		text = transformString(runes.Remove(runes.In(emoji)), text)
	}
	if c.ToASCII {
		text = toASCII(text)
	}
	if c.NoLineBreaks {
		text = breakRe.ReplaceAllString(text, " ")
	}
	if c.Lower {
		text = cases.Lower(language.English).String(text)
	}
	if c.NoURLs {
		text = urlRe.ReplaceAllString(text, c.ReplaceURL)
	}
	if c.NoEmails {
		text = emailRe.ReplaceAllString(text, c.ReplaceEmail)
	}
	if c.NoPhoneNumbers {
		text = phoneRe.ReplaceAllString(text, c.ReplacePhone)
	}
	if c.NoNumbers {
		text = numberRe.ReplaceAllString(text, c.ReplaceNumber)
	}
	if c.NoCurrency {
		text = currencyRe.ReplaceAllString(text, c.ReplaceCurrency)
	}
	if c.NoPunct {
		text = c.stripPunct(text)
	}
	return normalizeSpace(text)
}

func toASCII(text string) string {
	text = asciiFold.Replace(text)
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	return transformString(t, text)
}

// stripPunct removes punctuation outside replacement tokens such as <PHONE>
func (c *Cleaner) stripPunct(text string) string {
	punct := runes.Remove(runes.Predicate(unicode.IsPunct))
	replace := func(s string) string {
		if c.ReplacePunct == "" {
			return transformString(punct, s)
		}
		var b strings.Builder
		for _, r := range s {
			if unicode.IsPunct(r) {
				b.WriteString(c.ReplacePunct)
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	}

	var b strings.Builder
	last := 0
	for _, loc := range tokenRe.FindAllStringIndex(text, -1) {
		b.WriteString(replace(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(replace(text[last:]))
	return b.String()
}

func normalizeSpace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func transformString(t transform.Transformer, s string) string {
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
