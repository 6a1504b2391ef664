package humanize

import (
	"math/rand"
	"strings"
)

// FallbackNotice is appended to locally transformed output so the user
// knows the remote service was not involved.
const FallbackNotice = "\n\n[Note: processed in offline mode - the humanizer service was temporarily unavailable]"

// Intensity tunes how aggressive the local transform is. Higher tiers
// historically got stronger rewriting.
type Intensity struct {
	Strength  float64 // Probability scale for word swaps
	Variation float64 // Probability scale for filler insertion
}

// IntensityForTier maps a tier name to transform intensity.
// This is a PURE function.
func IntensityForTier(name string) Intensity {
	switch name {
	case "Premium":
		return Intensity{Strength: 0.8, Variation: 0.6}
	case "Free":
		return Intensity{Strength: 0.3, Variation: 0.2}
	default:
		return Intensity{Strength: 0.5, Variation: 0.3}
	}
}

// Word-level substitutions for common intensifier/filler vocabulary.
var wordSwaps = map[string][]string{
	"very":      {"quite", "rather", "pretty", "fairly"},
	"extremely": {"quite", "rather", "pretty", "fairly"},
	"really":    {"quite", "rather", "pretty", "fairly"},
	"good":      {"nice", "wonderful", "fantastic", "superb"},
	"great":     {"nice", "wonderful", "fantastic", "superb"},
	"excellent": {"nice", "wonderful", "fantastic", "superb"},
}

var fillers = []string{"basically", "actually", "honestly", "like", "you know", "sort of", "kind of"}

// Stock AI phrases and their more conversational replacements.
var phraseSwaps = map[string][]string{
	"In conclusion": {
		"To sum up", "All things considered",
		"When all is said and done", "Looking at the big picture",
	},
	"It is important to note": {
		"Keep in mind", "Don't forget",
		"Remember", "It's worth remembering",
	},
	"In this essay": {
		"Here", "In this analysis",
		"In what follows", "In this discussion",
	},
	"This data suggests": {
		"This seems to show", "This points to",
		"This suggests", "This hints at",
	},
}

// Fallback produces a locally-computed approximation of humanization:
// lightweight lexical substitution, occasional filler insertion, and
// replacement of stock AI phrasing. It exists because the upstream has
// proven unreliable and a dead dependency should not make the whole
// feature unusable. Deterministic for a given seed.
// This is a PURE function (given the seed).
func Fallback(text string, in Intensity, seed int64) string {
	rng := rand.New(rand.NewSource(seed))

	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if alts, ok := wordSwaps[strings.ToLower(w)]; ok && rng.Float64() < 0.1*in.Strength {
			w = alts[rng.Intn(len(alts))]
		}
		out = append(out, w)
		if rng.Float64() < 0.03*in.Variation {
			out = append(out, fillers[rng.Intn(len(fillers))])
		}
	}
	result := strings.Join(out, " ")

	for phrase, alts := range phraseSwaps {
		if strings.Contains(result, phrase) {
			result = strings.ReplaceAll(result, phrase, alts[rng.Intn(len(alts))])
		}
	}
	return result
}
