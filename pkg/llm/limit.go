package llm

import (
	"strings"
	"unicode"
)

// ReplyLimit keeps generated replies speakable: markdown emphasis is removed
// and the text is cut at MaxSentences sentence terminators, then at MaxChars.
// The zero value leaves replies untouched.
type ReplyLimit struct {
	MaxSentences int
	MaxChars     int
}

func (l ReplyLimit) Enabled() bool {
	return l.MaxSentences > 0 || l.MaxChars > 0
}

var markdownMarkers = strings.NewReplacer("**", "", "__", "", "`", "")

func (l ReplyLimit) Apply(text string) string {
	if !l.Enabled() {
		return text
	}
	text = strings.TrimSpace(markdownMarkers.Replace(text))
	text = strings.TrimLeft(text, "# ")
	if l.MaxSentences > 0 {
		text = truncateSentences(text, l.MaxSentences)
	}
	if l.MaxChars > 0 && len(text) > l.MaxChars {
		text = truncateRunes(text, l.MaxChars)
	}
	return text
}

// truncateSentences keeps the first maxSentences sentences. A terminator
// only ends a sentence when whitespace or the end of text follows it, so
// "3.11" and "e.g." stay whole.
func truncateSentences(text string, maxSentences int) string {
	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next < len(text) && !unicode.IsSpace(rune(text[next])) {
			continue
		}
		if r == '.' && abbreviation(text[:i]) {
			continue
		}
		count++
		if count >= maxSentences {
			if result := strings.TrimSpace(text[:next]); result != "" {
				return result
			}
			return text
		}
	}
	return text
}

var abbreviations = map[string]bool{"mr": true, "mrs": true, "ms": true, "dr": true, "vs": true}

// abbreviation reports whether the word before a period is "e.g"-like or a
// common title.
func abbreviation(head string) bool {
	word := head[strings.LastIndexFunc(head, unicode.IsSpace)+1:]
	if strings.Contains(word, ".") {
		return true
	}
	return abbreviations[strings.ToLower(word)]
}

// truncateRunes cuts at the last word boundary that fits in max bytes.
func truncateRunes(text string, max int) string {
	cut := 0
	for i := range text {
		if i > max {
			break
		}
		cut = i
	}
	if cut == 0 {
		return text
	}
	head := text[:cut]
	if sp := strings.LastIndexByte(head, ' '); sp > 0 {
		head = head[:sp]
	}
	return strings.TrimSpace(head)
}
