package contentfilter

import (
	"time"

	"github.com/dlclark/regexp2"
)

// Category of a disallowed pattern
type Category string

// enum of disallowed pattern categories
const (
	CategorySexual      Category = "sexual"
	CategoryHate        Category = "hate"
	CategoryViolence    Category = "violence"
	CategoryPromotional Category = "promotional"
	CategoryIllicit     Category = "illicit"
)

// rule is a single named matcher in one of the ordered rule tables
type rule struct {
	category Category
	re       *regexp2.Regexp
}

// all patterns are compiled in ECMAScript mode, so \w, \s and \b behave exactly like on the mobile client
const (
	reOpts     = regexp2.ECMAScript
	reOptsFold = regexp2.ECMAScript | regexp2.IgnoreCase
)

// matchTimeout bounds a single pattern run, a prayer request is matched in microseconds
const matchTimeout = 250 * time.Millisecond

// compile makes a pattern with matchTimeout set, a run hitting it returns an error
func compile(expr string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// profanityTerms is matched against whitespace tokens stripped to word characters.
// Entries with symbols never match after stripping, they are kept to mirror the client list.
var profanityTerms = map[string]struct{}{
	// strong profanity
	"fuck": {}, "fucking": {}, "shit": {}, "bitch": {}, "damn": {}, "hell": {}, "ass": {}, "crap": {},
	"bastard": {}, "whore": {}, "slut": {}, "piss": {}, "cock": {}, "dick": {}, "pussy": {},
	// variants and common misspellings
	"f*ck": {}, "f**k": {}, "sh*t": {}, "sh**": {}, "b*tch": {}, "d*mn": {}, "a**": {}, "cr*p": {},
	"fck": {}, "fuk": {}, "sht": {}, "btch": {}, "dmn": {}, "ars": {}, "azz": {},
	// character substitutions
	"f4ck": {}, "sh1t": {}, "b1tch": {}, "d4mn": {}, "@ss": {}, "$hit": {}, "fu©k": {},
}

// disallowedPatterns are tested in order. QuickValidate only uses the first quickPatterns entries.
var disallowedPatterns = []rule{
	// sexual content
	{CategorySexual, compile(`\b(porn|pornography|sex tape|nude|naked|horny|sexy time)\b`, reOptsFold)},
	{CategorySexual, compile(`\b(masturbat|orgasm|climax|cum|cumming)\b`, reOptsFold)},
	{CategorySexual, compile(`\b(hooker|prostitute|escort|stripper)\b`, reOptsFold)},

	// hate speech and slurs
	{CategoryHate, compile(`\b(faggot|fag|dyke|tranny|retard|retarded|spic|chink|nigger|nigga)\b`, reOptsFold)},
	{CategoryHate, compile(`\b(kike|wetback|towelhead|sandnigger|raghead)\b`, reOptsFold)},

	// self-harm and violence threats
	{CategoryViolence, compile(`\b(kill myself|suicide|end it all|not worth living)\b`, reOptsFold)},
	{CategoryViolence, compile(`\b(murder|kill you|death threat|bomb|terrorist)\b`, reOptsFold)},

	// spam and promotional phrases, links are handled by the spam stage
	{CategoryPromotional, compile(`\b(buy now|click here|visit my|check out my|follow me)\b`, reOptsFold)},
	{CategoryPromotional, compile(`\b(make money|get rich|free money|bitcoin|crypto)\b`, reOptsFold)},

	// explicit illicit solicitation
	{CategoryIllicit, compile(`\b(send nudes|hook up|looking for sex|one night stand)\b`, reOptsFold)},
	{CategoryIllicit, compile(`\b(drug dealer|selling drugs|buy weed|cocaine|heroin)\b`, reOptsFold)},
}

const quickPatterns = 3

// sensitiveTopics suppress disallowed matches when found anywhere in the lowercased text
var sensitiveTopics = []string{
	"abuse", "addiction", "depression", "anxiety", "suicide thoughts",
	"self harm", "eating disorder", "alcoholism", "divorce", "death",
	"cancer", "illness", "miscarriage", "infertility", "unemployment",
	"homeless", "poverty", "domestic violence", "sexual assault",
	"trauma", "ptsd", "mental health", "therapy", "counseling",
}

// spamPatterns detect degenerate text shapes
var spamPatterns = []*regexp2.Regexp{
	compile(`(.)\1{10,}`, reOpts),            // same character repeated 10+ more times
	compile(`\b(\w+)\s+\1\s+\1`, reOptsFold), // same word three times in a row
	compile(`[A-Z]{20,}`, reOpts),            // shouting
	compile(`[!?]{5,}`, reOpts),              // punctuation flood
	compile(`\.{10,}`, reOpts),               // ellipsis flood
}

// linkPattern catches urls and promotional domains
var linkPattern = compile(`(http|www\.|\.com|\.org|\.net)`, reOptsFold)

// IsProfanity reports whether a single lowercased, stripped token is in the profanity list
func IsProfanity(token string) bool {
	_, ok := profanityTerms[token]
	return ok
}

// SensitiveTopics returns a copy of the allowed sensitive topic phrases
func SensitiveTopics() []string {
	res := make([]string, len(sensitiveTopics))
	copy(res, sensitiveTopics)
	return res
}
