package csvimport

import "strings"

// businessTokens flags donor names that are organizations rather than
// people; those keep the whole name in the first-name slot.
var businessTokens = map[string]struct{}{
	"awards":      {},
	"inc":         {},
	"llc":         {},
	"company":     {},
	"corp":        {},
	"corporation": {},
	"enterprises": {},
	"group":       {},
}

// SmartTitle title-cases each token while preserving apostrophes and
// hyphens, so "o'brien-smith" becomes "O'Brien-Smith".
func SmartTitle(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		hyphenated := strings.Split(word, "-")
		for j, part := range hyphenated {
			apostrophed := strings.Split(part, "'")
			for k, segment := range apostrophed {
				apostrophed[k] = capitalize(segment)
			}
			hyphenated[j] = strings.Join(apostrophed, "'")
		}
		words[i] = strings.Join(hyphenated, "-")
	}
	return strings.Join(words, " ")
}

// SplitName normalizes a raw full name into (first, last). Business-style
// names are kept whole with an empty last name; personal names keep the
// first and final tokens.
func SplitName(fullName string) (string, string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return "", ""
	}

	lower := strings.ToLower(name)
	for token := range businessTokens {
		if strings.Contains(lower, token) {
			return SmartTitle(name), ""
		}
	}

	tokens := strings.Fields(name)
	first := SmartTitle(tokens[0])
	last := ""
	if len(tokens) > 1 {
		last = SmartTitle(tokens[len(tokens)-1])
	}
	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
