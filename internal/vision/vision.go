// Package vision adapts an external image-labelling service into a
// console/game judgment. Callers should wrap any Classifier in FailOpen: the
// image signal is best effort and must never be the sole reason a listing is
// lost.
package vision

import (
	"context"
	"errors"
	"strings"

	"sjsage522/consoledealworker/config"
)

// Verdict is the outcome of classifying one image
type Verdict string

const (
	VerdictAccept        Verdict = "accept"
	VerdictReject        Verdict = "reject"
	VerdictIndeterminate Verdict = "indeterminate"
)

// ErrNoCredential is returned when the service has no API key configured
var ErrNoCredential = errors.New("vision: no API key configured")

// Judgment is a verdict together with the label tally behind it
type Judgment struct {
	Verdict      Verdict  `json:"verdict"`
	ConsoleScore int      `json:"console_score"`
	GameScore    int      `json:"game_score"`
	Labels       []string `json:"labels,omitempty"`
	// Cause is set on indeterminate judgments
	Cause string `json:"cause,omitempty"`
}

// Classifier judges whether an image shows a console or a game
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (Judgment, error)
}

// Scorer turns detected labels into a judgment
type Scorer struct {
	console  []string
	game     []string
	specific map[string]bool
}

// NewScorer builds a scorer from the label vocabularies
func NewScorer(labels config.VisionLabels) *Scorer {
	s := &Scorer{
		console:  lower(labels.ConsoleLabels),
		game:     lower(labels.GameLabels),
		specific: make(map[string]bool, len(labels.SpecificConsoleLabels)),
	}
	for _, l := range lower(labels.SpecificConsoleLabels) {
		s.specific[l] = true
	}
	return s
}

// Score applies the console/game rule to the detected labels. A vocabulary
// word counts once if it occurs inside any label; a specific console label
// must match a detected label exactly.
func (s *Scorer) Score(detected []string) Judgment {
	detected = lower(detected)

	j := Judgment{Labels: detected}
	j.ConsoleScore = countContained(s.console, detected)
	j.GameScore = countContained(s.game, detected)

	specific := false
	for _, d := range detected {
		if s.specific[d] {
			specific = true
			break
		}
	}

	switch {
	case j.GameScore > 0 && !specific:
		j.Verdict = VerdictReject
	case specific && j.ConsoleScore >= 2 && j.ConsoleScore > j.GameScore:
		j.Verdict = VerdictAccept
	case j.GameScore > 0:
		j.Verdict = VerdictReject
	case specific && j.ConsoleScore >= 3:
		j.Verdict = VerdictAccept
	default:
		j.Verdict = VerdictReject
	}
	return j
}

func countContained(vocabulary, detected []string) int {
	n := 0
	for _, word := range vocabulary {
		for _, d := range detected {
			if strings.Contains(d, word) {
				n++
				break
			}
		}
	}
	return n
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
