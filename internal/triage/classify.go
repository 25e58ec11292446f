package triage

import (
	"regexp"
	"sort"
	"strings"
)

var (
	reSpeaker    = regexp.MustCompile(`(?m)^\s*(customer|agent|bot)\s*:\s*`)
	reQuotes     = regexp.MustCompile(`[\x{2018}\x{2019}\x{201C}\x{201D}]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTranscript lower-cases text, drops speaker labels, folds curly
// quotes and collapses whitespace so phrase matching is stable across
// transcript formats.
func NormalizeTranscript(text string) string {
	text = strings.ToLower(text)
	text = reSpeaker.ReplaceAllString(text, " ")
	text = reQuotes.ReplaceAllStringFunc(text, func(q string) string {
		if q == "‘" || q == "’" {
			return "'"
		}
		return `"`
	})
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Classifier flags dissatisfaction by substring match against a phrase to
// signal map. It is a coarse boolean check and can be swapped for a real
// classifier behind the same Classify contract.
type Classifier struct {
	phrases []phraseSignal
}

type phraseSignal struct {
	phrase string
	signal string
}

// Classification is the result of scanning one transcript.
type Classification struct {
	Severe  bool
	Signals []string
	Matched []string
}

// NewClassifier builds a Classifier. Phrases are matched case-insensitively.
func NewClassifier(phrases map[string]string) *Classifier {
	c := &Classifier{phrases: make([]phraseSignal, 0, len(phrases))}
	for phrase, signal := range phrases {
		p := NormalizeTranscript(phrase)
		if p == "" {
			continue
		}
		if signal == "" {
			signal = "dissatisfaction"
		}
		c.phrases = append(c.phrases, phraseSignal{phrase: p, signal: signal})
	}
	sort.Slice(c.phrases, func(i, j int) bool {
		return c.phrases[i].phrase < c.phrases[j].phrase
	})
	return c
}

// Classify scans text for every configured phrase. Signals and Matched are
// sorted and de-duplicated.
func (c *Classifier) Classify(text string) Classification {
	normalized := NormalizeTranscript(text)

	signals := make(map[string]bool)
	var matched []string
	for _, ps := range c.phrases {
		if strings.Contains(normalized, ps.phrase) {
			matched = append(matched, ps.phrase)
			signals[ps.signal] = true
		}
	}

	out := Classification{Severe: len(matched) > 0, Matched: matched}
	for s := range signals {
		out.Signals = append(out.Signals, s)
	}
	sort.Strings(out.Signals)
	return out
}
