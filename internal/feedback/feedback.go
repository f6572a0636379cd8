// Package feedback classifies requester feedback on resolved tickets into a
// close-or-reopen decision.
package feedback

import (
	"strings"
	"unicode"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// Indicator phrases are matched against lowercased feedback. Multi-word
// phrases match as substrings; single words match whole tokens only, so
// "now" does not trip the "no" indicator.
var negativeIndicators = []string{
	"didn't work",
	"not working",
	"still broken",
	"doesn't work",
	"didn't help",
	"not fixed",
	"no",
	"failed",
	"can't",
	"unable",
	"error",
	"problem",
	"issue",
	"same",
	"still",
	"worse",
	"useless",
}

var positiveIndicators = []string{
	"thank you",
	"worked",
	"solved",
	"fixed",
	"resolved",
	"yes",
	"good",
	"thanks",
	"perfect",
	"great",
	"okay",
	"ok",
	"fine",
	"successful",
	"working",
	"better",
	"improved",
	"helped",
	"useful",
}

// Result carries the classification outcome.
type Result struct {
	Decision domain.ResolutionDecision
	Reason   string
}

// Classify reads requester feedback and decides whether the ticket closes or
// reopens. Any negative indicator wins over positives, and feedback with no
// signal at all reopens so nothing gets closed on silence.
func Classify(text string) Result {
	lowered := strings.ToLower(text)
	tokens := tokenize(lowered)

	if matchesAny(lowered, tokens, negativeIndicators) {
		return Result{Decision: domain.DecisionReopen, Reason: "negative feedback"}
	}
	if matchesAny(lowered, tokens, positiveIndicators) {
		return Result{Decision: domain.DecisionClose, Reason: "positive feedback"}
	}
	return Result{Decision: domain.DecisionReopen, Reason: "ambiguous feedback"}
}

func matchesAny(lowered string, tokens map[string]struct{}, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(ind, " ") {
			if strings.Contains(lowered, ind) {
				return true
			}
			continue
		}
		if _, ok := tokens[ind]; ok {
			return true
		}
	}
	return false
}

func tokenize(lowered string) map[string]struct{} {
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[strings.Trim(f, "'")] = struct{}{}
	}
	return tokens
}
