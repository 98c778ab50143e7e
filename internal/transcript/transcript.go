// Package transcript aligns speech-to-text output with a known vocabulary.
//
// STT engines routinely mangle proper nouns and domain terms the model never
// saw ("eldrinax" comes back as "elder nacks"). The Corrector repairs these
// by matching transcript tokens against a configured vocabulary using Double
// Metaphone phonetic codes, ranked by Jaro-Winkler similarity. Matching is
// purely in-process and fast enough to sit on the latency-critical path
// between transcription and reply generation.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists and matching falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Correction records one replacement made while correcting a transcript.
type Correction struct {
	Original  string
	Corrected string
	Score     float64
}

// Corrector matches transcript spans against a fixed vocabulary. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	vocabulary        []string
	maxTermTokens     int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector builds a Corrector over the given vocabulary. Terms may be
// multi-word ("Tower of Whispers"); matching then considers n-gram windows
// of the transcript up to the longest term's word count.
func NewCorrector(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		maxTermTokens:     1,
	}
	for _, term := range vocabulary {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		c.vocabulary = append(c.vocabulary, term)
		if n := len(strings.Fields(term)); n > c.maxTermTokens {
			c.maxTermTokens = n
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct replaces misheard vocabulary terms in text and reports every
// replacement made. With an empty vocabulary the text is returned unchanged.
//
// The transcript is scanned left to right with windows from maxTermTokens
// words down to one; the widest matching window wins and scanning resumes
// after it, so a multi-word term is never partially re-corrected.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.vocabulary) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	tokens := strings.Fields(text)
	var (
		out         []string
		corrections []Correction
	)

	for i := 0; i < len(tokens); {
		matchedWidth := 0
		for width := min(c.maxTermTokens, len(tokens)-i); width >= 1; width-- {
			span := strings.Join(tokens[i:i+width], " ")
			core, prefix, suffix := trimPunct(span)
			if core == "" {
				continue
			}
			term, score, ok := c.match(core)
			if !ok {
				continue
			}
			if strings.EqualFold(core, term) {
				// Already correct; keep the speaker's casing.
				matchedWidth = width
				out = append(out, tokens[i:i+width]...)
				break
			}
			matchedWidth = width
			out = append(out, prefix+term+suffix)
			corrections = append(corrections, Correction{
				Original:  core,
				Corrected: term,
				Score:     score,
			})
			break
		}
		if matchedWidth == 0 {
			out = append(out, tokens[i])
			i++
		} else {
			i += matchedWidth
		}
	}

	return strings.Join(out, " "), corrections
}

// match finds the vocabulary term most similar to span.
//
// Two-stage selection: Double Metaphone codes gate which terms count as
// phonetic candidates, then Jaro-Winkler similarity ranks them. Phonetic
// candidates accept at phoneticThreshold; without any phonetic overlap a
// term must clear the stricter fuzzyThreshold on string similarity alone.
func (c *Corrector) match(span string) (term string, score float64, ok bool) {
	spanLower := strings.ToLower(span)
	spanTokens := strings.Fields(spanLower)
	spanCodes := metaphoneCodes(spanTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for _, candidate := range c.vocabulary {
		candLower := strings.ToLower(candidate)
		candTokens := strings.Fields(candLower)

		phonetic := codesOverlap(spanCodes, metaphoneCodes(candTokens))
		jw := similarity(spanTokens, candTokens, spanLower, candLower)

		switch {
		case phonetic && jw >= c.phoneticThreshold:
			if !bestPhonetic || jw > bestScore {
				best, bestScore, bestPhonetic = candidate, jw, true
			}
		case !phonetic && !bestPhonetic && jw >= c.fuzzyThreshold && jw > bestScore:
			best, bestScore = candidate, jw
		}
	}

	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// metaphoneCodes returns the union of Double Metaphone codes across tokens.
// Tokens yielding no code (too short, no consonants) contribute nothing.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across three views of the pair:
// the full strings, the space-stripped concatenations (so "elder nacks" can
// meet "eldrinax"), and the best single token pairing.
func similarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	for _, a := range aTokens {
		for _, b := range bTokens {
			if s := matchr.JaroWinkler(a, b, false); s > score {
				score = s
			}
		}
	}
	return score
}

// trimPunct splits leading/trailing ASCII punctuation off a span so that
// "Eldrinax?" matches and the question mark survives the replacement.
func trimPunct(span string) (core, prefix, suffix string) {
	start, end := 0, len(span)
	for start < end && isPunct(span[start]) {
		start++
	}
	for end > start && isPunct(span[end-1]) {
		end--
	}
	return span[start:end], span[:start], span[end:]
}

func isPunct(b byte) bool {
	switch b {
	case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '[', ']':
		return true
	}
	return false
}
