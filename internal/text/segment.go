package text

import (
	"regexp"
	"strings"
)

// Limits bounds a chunk along both axes. Word limits alone under-constrain
// dense technical vocabulary, so the character ceiling acts as an independent
// bound against the backend's per-call token budget.
type Limits struct {
	MaxWords int
	MaxChars int
}

// Chunk is a bounded span of source text sent to the backend as one unit.
// Words and Chars count the spoken text only; inline markup tags are retained
// in Text but never counted. Oversize marks the single allowed exception: an
// atomic run of non-whitespace longer than MaxChars, emitted verbatim.
type Chunk struct {
	Index    int
	Text     string
	Words    int
	Chars    int
	Oversize bool
}

// markupRe matches inline style/emotion annotations such as <laugh>.
var markupRe = regexp.MustCompile(`<[^<>]*>`)

// Segment splits text into ordered chunks satisfying limits. Sentences are
// accumulated greedily; a sentence that alone violates a limit is split at
// clause punctuation, then at word boundaries as the base case. Empty input
// yields nil; input without terminal punctuation is one sentence.
func Segment(input string, limits Limits) []Chunk {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	pieces := accumulate(splitSentences(trimmed), limits, func(sentence string) []string {
		return fit(sentence, limits)
	})

	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		w, c := measure(p)
		chunks = append(chunks, Chunk{
			Index:    i,
			Text:     p,
			Words:    w,
			Chars:    c,
			Oversize: c > limits.MaxChars,
		})
	}
	return chunks
}

// measure counts spoken words and characters, ignoring markup tags.
func measure(s string) (words, chars int) {
	spoken := markupRe.ReplaceAllString(s, "")
	words = len(strings.Fields(spoken))
	chars = len([]rune(strings.TrimSpace(spoken)))
	return words, chars
}

func withinLimits(words, chars int, limits Limits) bool {
	return words <= limits.MaxWords && chars <= limits.MaxChars
}

// fit returns sentence as a single piece when it satisfies limits, otherwise
// recursively descends to clause and then word granularity.
func fit(sentence string, limits Limits) []string {
	if w, c := measure(sentence); withinLimits(w, c, limits) {
		return []string{sentence}
	}
	clauses := splitClauses(sentence)
	if len(clauses) > 1 {
		return accumulate(clauses, limits, func(unit string) []string {
			return fitWords(unit, limits)
		})
	}
	return fitWords(sentence, limits)
}

// fitWords is the termination base case: accumulate individual words under
// the character budget. A single word longer than MaxChars cannot be split
// without corrupting pronunciation, so it becomes its own oversize piece.
func fitWords(unit string, limits Limits) []string {
	words := strings.Fields(unit)
	return accumulate(words, limits, func(word string) []string {
		return []string{word}
	})
}

// accumulate packs units into pieces, checking both constraints against the
// prospective total before each append and flushing when either would be
// exceeded. Units that alone violate limits are handed to overflow.
func accumulate(units []string, limits Limits, overflow func(string) []string) []string {
	var pieces []string
	var current strings.Builder
	curWords, curChars := 0, 0

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			curWords, curChars = 0, 0
		}
	}

	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		w, c := measure(unit)
		if !withinLimits(w, c, limits) {
			flush()
			sub := overflow(unit)
			if len(sub) == 1 && sub[0] == unit {
				// Irreducible: emit verbatim even past the limit.
				pieces = append(pieces, unit)
				continue
			}
			pieces = append(pieces, sub...)
			continue
		}
		joined := curChars + c
		if curChars > 0 {
			joined++ // separating space
		}
		if curWords+w > limits.MaxWords || joined > limits.MaxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(unit)
		curWords += w
		if curChars > 0 {
			curChars++
		}
		curChars += c
	}
	flush()
	return pieces
}

// splitSentences breaks text at sentence-terminal punctuation followed by
// whitespace, keeping the punctuation attached to its sentence.
func splitSentences(s string) []string {
	var sentences []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// Consume a run of terminal punctuation ("?!", "...").
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && !isSpace(runes[j+1]) {
			i = j
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : j+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		for j+1 < len(runes) && isSpace(runes[j+1]) {
			j++
		}
		start = j + 1
		i = j
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

// splitClauses breaks a sentence at clause punctuation (commas, semicolons,
// em-dashes), keeping the punctuation attached to the preceding clause.
func splitClauses(s string) []string {
	var clauses []string
	runes := []rune(s)
	start := 0
	for i, r := range runes {
		if r != ',' && r != ';' && r != '—' {
			continue
		}
		clause := strings.TrimSpace(string(runes[start : i+1]))
		if clause != "" {
			clauses = append(clauses, clause)
		}
		start = i + 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			clauses = append(clauses, tail)
		}
	}
	return clauses
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
