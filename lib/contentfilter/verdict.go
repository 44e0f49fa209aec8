package contentfilter

import (
	"fmt"
	"strings"
)

// Verdict is a result of the full content check.
// Clean verdict has empty Reason and no Suggestions, rejected verdict has both.
type Verdict struct {
	Clean       bool     `json:"isClean"`            // true if text passed every check
	Reason      string   `json:"reason,omitempty"`   // user-facing explanation from the first failed check
	Suggestions []string `json:"suggestions"`        // remediation hints for the failed check
	Check       string   `json:"check,omitempty"`    // name of the failed check, for logs and metrics
	Category    Category `json:"category,omitempty"` // category of the disallowed pattern, if any
}

func (v Verdict) String() string {
	if v.Clean {
		return "clean"
	}
	return fmt.Sprintf("%s: %s [%s]", v.Check, v.Reason, strings.Join(v.Suggestions, "; "))
}

// QuickVerdict is a result of the abbreviated check used for live typing feedback
type QuickVerdict struct {
	Valid   bool   `json:"isValid"`
	Message string `json:"message,omitempty"` // set only if not valid
}

// CacheStats is a snapshot of the validation cache
type CacheStats struct {
	Size    int  `json:"size"`
	Limit   int  `json:"limit"`
	Enabled bool `json:"enabled"`
	Hits    int  `json:"hits"`
	Misses  int  `json:"misses"`
}

// names of the pipeline checks
const (
	CheckEmpty      = "empty"
	CheckProfanity  = "profanity"
	CheckDisallowed = "disallowed"
	CheckSpam       = "spam"
	CheckLinks      = "links"
	CheckTooShort   = "too-short"
	CheckGibberish  = "gibberish"
)

var cleanVerdict = Verdict{Clean: true, Suggestions: []string{}}

var (
	emptyVerdict = Verdict{
		Check:       CheckEmpty,
		Reason:      "Please enter your prayer request",
		Suggestions: []string{"Share what you need prayer for in a respectful way"},
	}

	blankVerdict = Verdict{
		Check:       CheckEmpty,
		Reason:      "Please enter your prayer request",
		Suggestions: []string{"Share what you need prayer for"},
	}

	profanityVerdict = Verdict{
		Check:  CheckProfanity,
		Reason: "Please keep your prayer request respectful",
		Suggestions: []string{
			"Share your feelings without using inappropriate language",
			"Our community values respectful communication",
			"Express your concerns in a way that honors others",
		},
	}

	disallowedVerdict = Verdict{
		Check:  CheckDisallowed,
		Reason: "Please keep your prayer request appropriate for our community",
		Suggestions: []string{
			"Focus on how we can pray for your situation",
			"Share your needs in a way that respects all community members",
			"Remember this is a safe space for spiritual support",
		},
	}

	spamVerdict = Verdict{
		Check:  CheckSpam,
		Reason: "Please write your prayer request naturally",
		Suggestions: []string{
			"Avoid excessive repetition or special characters",
			"Write in a conversational, sincere manner",
			"Share your genuine prayer needs",
		},
	}

	linksVerdict = Verdict{
		Check:  CheckLinks,
		Reason: "Please don't include links or promotional content",
		Suggestions: []string{
			"Focus on your prayer request without external links",
			"Share your personal situation instead",
			"Keep the focus on spiritual support",
		},
	}

	tooShortVerdict = Verdict{
		Check:  CheckTooShort,
		Reason: "Please share more details about your prayer request",
		Suggestions: []string{
			"Help us understand how to pray for you",
			"Share what specific support you need",
			"Give us enough context to pray effectively",
		},
	}

	gibberishVerdict = Verdict{
		Check:  CheckGibberish,
		Reason: "Please write your prayer request clearly",
		Suggestions: []string{
			"Use regular words to describe your situation",
			"Help us understand your prayer needs",
			"Write in a way others can relate to and pray for",
		},
	}
)

// quick check messages
const (
	quickProfanityMsg  = "Please keep your language respectful"
	quickDisallowedMsg = "Please keep your content appropriate"
)

// clone returns a copy with its own suggestions slice, so callers can't mutate shared verdicts
func (v Verdict) clone() Verdict {
	res := v
	res.Suggestions = make([]string, len(v.Suggestions))
	copy(res.Suggestions, v.Suggestions)
	return res
}
