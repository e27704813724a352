package pipeline

import "strings"

// themeRules is the single heuristic rules table shared by every stage's
// fallback path. Keeping one table avoids the keyword lists drifting apart
// between stages.
var themeRules = map[string]struct {
	Keywords []string
	Weight   float64
}{
	"school": {
		Keywords: []string{"school", "teacher", "classroom", "homework", "pta", "field trip", "permission slip", "parent-teacher", "principal", "report card", "tuition"},
		Weight:   0.7,
	},
	"health": {
		Keywords: []string{"doctor", "appointment", "dentist", "pediatric", "vaccine", "prescription", "clinic", "checkup", "insurance claim", "pharmacy"},
		Weight:   0.75,
	},
	"activities": {
		Keywords: []string{"practice", "game", "tournament", "recital", "lesson", "coach", "registration", "season", "camp", "rehearsal"},
		Weight:   0.65,
	},
	"logistics": {
		Keywords: []string{"pickup", "drop off", "drop-off", "carpool", "schedule change", "reschedule", "calendar", "rsvp"},
		Weight:   0.6,
	},
	"finance": {
		Keywords: []string{"payment", "invoice", "bill", "due date", "receipt", "balance", "fee", "refund"},
		Weight:   0.6,
	},
	"social": {
		Keywords: []string{"birthday", "party", "playdate", "invite", "invitation", "celebration", "get together"},
		Weight:   0.6,
	},
	"travel": {
		Keywords: []string{"flight", "itinerary", "reservation", "hotel", "booking", "trip", "vacation"},
		Weight:   0.6,
	},
	"shopping": {
		Keywords: []string{"order", "shipped", "delivery", "tracking", "return", "exchange"},
		Weight:   0.5,
	},
}

// urgentWords drive the heuristic priority boost.
var urgentWords = []string{
	"urgent", "asap", "today", "tomorrow", "deadline", "immediately",
	"reminder", "last chance", "final notice", "action required", "due",
}

// matchThemes scores each theme by keyword hits against the combined subject
// and body. Confidence grows with hit count but stays below the rule weight.
func matchThemes(subject, body string) map[string]float64 {
	text := strings.ToLower(subject + " " + body)
	scores := map[string]float64{}

	for theme, rule := range themeRules {
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		conf := rule.Weight * (1 - 1/float64(hits+1)) * 2
		if conf > rule.Weight {
			conf = rule.Weight
		}
		scores[theme] = conf
	}
	return scores
}

// matchedKeywords returns the rule keywords present in the text, capped.
func matchedKeywords(subject, body string, capAt int) []string {
	text := strings.ToLower(subject + " " + body)
	var out []string
	seen := map[string]bool{}

	for _, rule := range themeRules {
		for _, kw := range rule.Keywords {
			if !seen[kw] && strings.Contains(text, kw) {
				seen[kw] = true
				out = append(out, kw)
				if len(out) >= capAt {
					return out
				}
			}
		}
	}
	return out
}

// hasUrgentWord reports whether the text contains any urgency marker.
func hasUrgentWord(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	for _, w := range urgentWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
