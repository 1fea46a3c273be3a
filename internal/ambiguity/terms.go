package ambiguity

import (
	"regexp"
	"strings"
)

// vagueTerms are words that carry no referent on their own.
var vagueTerms = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "there": {}, "here": {},
	"something": {}, "anything": {}, "everything": {},
	"later": {}, "soon": {}, "sometime": {}, "somewhere": {}, "someone": {},
	"maybe": {}, "probably": {},
	"stuff": {}, "things": {}, "item": {}, "place": {}, "person": {},
	"whatever": {}, "whenever": {}, "however": {},
}

// contextDependentTerms need a following word to resolve what they refer to.
var contextDependentTerms = map[string]struct{}{
	"my": {}, "the": {}, "our": {}, "their": {}, "his": {}, "her": {},
	"its": {}, "these": {}, "those": {}, "such": {},
}

var (
	nonWordRe          = regexp.MustCompile(`[^\w]`)
	incompletePhraseRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(book|reserve|cancel|change)\s*$`),
		regexp.MustCompile(`(?i)\bi (want|need)\s*$`),
		regexp.MustCompile(`(?i)\bhow much\s*$`),
		regexp.MustCompile(`(?i)\bwhere is\s*$`),
	}
)

// ExtractAmbiguousTerms lists the vague and dangling terms in a message, in
// order of appearance, without duplicates.
func ExtractAmbiguousTerms(message string) []string {
	var terms []string
	seen := make(map[string]struct{})

	add := func(term string) {
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	words := strings.Fields(strings.ToLower(message))
	for i, word := range words {
		clean := nonWordRe.ReplaceAllString(word, "")

		if _, ok := vagueTerms[clean]; ok {
			add(clean)
		}

		if _, ok := contextDependentTerms[clean]; ok {
			if i+1 < len(words) {
				next := nonWordRe.ReplaceAllString(words[i+1], "")
				_, nextVague := vagueTerms[next]
				_, nextDependent := contextDependentTerms[next]
				if nextVague || nextDependent {
					add(clean + " " + next)
				}
			} else {
				// Dangling referent at end of message.
				add(clean)
			}
		}
	}

	for _, re := range incompletePhraseRe {
		if m := re.FindString(message); m != "" {
			add(strings.ToLower(strings.TrimSpace(m)))
		}
	}

	return terms
}
