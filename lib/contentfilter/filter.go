// Package contentfilter implements a rule-based moderation filter for short prayer requests.
// Text goes through a fixed pipeline of checks (profanity, disallowed patterns, spam shapes, quality)
// and the first failed check defines the verdict. Results are cached per filter instance.
// Patterns follow ECMAScript regex semantics and run over UTF-16 code units, and lengths are counted
// in code units too, so verdicts are the same as on the mobile client, emoji included.
package contentfilter

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/dlclark/regexp2"
)

// Filter is a content moderation filter, thread-safe.
// Rule tables are shared and immutable, the result cache belongs to the filter.
type Filter struct {
	Config
	cache *resultCache // nil if caching disabled
}

// Config is a set of parameters for Filter. Zero value is a valid default configuration.
type Config struct {
	Strictness        Strictness // reserved for tuning, all levels behave as moderate
	NoSensitiveTopics bool       // if true, sensitive topic phrases don't suppress disallowed patterns
	NoCache           bool       // if true, results are not cached
	CacheLimit        int        // max cached results before eviction, DefaultCacheLimit if 0
	CacheEvict        int        // number of oldest results evicted at once, DefaultCacheEvict if 0
}

// Strictness of the filter
type Strictness string

// enum of strictness levels
const (
	Lenient  Strictness = "lenient"
	Moderate Strictness = "moderate"
	Strict   Strictness = "strict"
)

// ParseStrictness converts a string to Strictness, empty string means Moderate
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToLower(strings.TrimSpace(s))) {
	case "", Moderate:
		return Moderate, nil
	case Lenient:
		return Lenient, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown strictness %q", s)
}

// UnmarshalFlag implements flags.Unmarshaler, allows Strictness in cli options
func (s *Strictness) UnmarshalFlag(value string) error {
	v, err := ParseStrictness(value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// New makes a Filter with the given config
func New(cfg Config) *Filter {
	if cfg.Strictness == "" {
		cfg.Strictness = Moderate
	}
	if cfg.CacheLimit <= 0 {
		cfg.CacheLimit = DefaultCacheLimit
	}
	if cfg.CacheEvict <= 0 {
		cfg.CacheEvict = min(DefaultCacheEvict, cfg.CacheLimit)
	}
	res := &Filter{Config: cfg}
	if !cfg.NoCache {
		res.cache = newResultCache(cfg.CacheLimit, cfg.CacheEvict)
	}
	return res
}

var (
	defaultFilter     *Filter
	defaultFilterOnce sync.Once
)

// Default returns a shared filter with default config, made on the first call
func Default() *Filter {
	defaultFilterOnce.Do(func() { defaultFilter = New(Config{}) })
	return defaultFilter
}

// FilterContent runs the full check and returns a verdict. Empty text is rejected without caching.
func (f *Filter) FilterContent(text string) Verdict {
	if text == "" {
		return emptyVerdict.clone()
	}
	clean := strings.TrimSpace(text)
	if clean == "" {
		return blankVerdict.clone()
	}

	key := cacheKey(modeFull, clean)
	if f.cache != nil {
		if r, ok := f.cache.get(key); ok {
			return r.full.clone()
		}
	}

	res := f.check(clean)
	if !res.Clean {
		log.Printf("[DEBUG] content rejected by %s check, %d chars", res.Check, TextLen(clean))
	}
	if f.cache != nil {
		f.cache.put(key, cachedResult{full: res})
	}
	return res.clone()
}

// QuickValidate is an abbreviated check for live typing feedback. It looks at the first 10 words for profanity
// and at the first few disallowed patterns only, without sensitive topic suppression.
// A valid quick verdict doesn't mean the text will pass FilterContent.
func (f *Filter) QuickValidate(text string) QuickVerdict {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return QuickVerdict{Valid: true}
	}

	key := cacheKey(modeQuick, clean)
	if f.cache != nil {
		if r, ok := f.cache.get(key); ok {
			return r.quick
		}
	}

	res := f.quickCheck(clean)
	if f.cache != nil {
		f.cache.put(key, cachedResult{quick: res})
	}
	return res
}

// ClearCache removes all cached results
func (f *Filter) ClearCache() {
	if f.cache != nil {
		f.cache.purge()
	}
}

// CacheStats returns cache size, limit and hit counters
func (f *Filter) CacheStats() CacheStats {
	res := CacheStats{Limit: f.CacheLimit, Enabled: f.cache != nil}
	if f.cache != nil {
		res.Size, res.Hits, res.Misses = f.cache.stats()
	}
	return res
}

// check runs the pipeline on trimmed text, the first failed check wins
func (f *Filter) check(text string) Verdict {
	lower := strings.ToLower(text)

	if hasProfanity(strings.Fields(lower)) {
		return profanityVerdict
	}

	units := codeUnits(text)
	if cat, found := f.disallowed(units, lower); found {
		res := disallowedVerdict
		res.Category = cat
		return res
	}

	for _, re := range spamPatterns {
		if matches(re, units, true) {
			return spamVerdict
		}
	}
	if matches(linkPattern, units, true) {
		return linksVerdict
	}

	return checkQuality(text)
}

// disallowed returns the category of the first disallowed pattern found in text.
// A sensitive topic anywhere in the text suppresses all patterns, not only the matched one.
func (f *Filter) disallowed(units []rune, lower string) (Category, bool) {
	for _, r := range disallowedPatterns {
		if !matches(r.re, units, true) {
			continue
		}
		if !f.NoSensitiveTopics && mentionsSensitiveTopic(lower) {
			log.Printf("[DEBUG] %s pattern suppressed by sensitive topic", r.category)
			return "", false
		}
		return r.category, true
	}
	return "", false
}

func (f *Filter) quickCheck(text string) QuickVerdict {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > quickWords {
		words = words[:quickWords]
	}
	if hasProfanity(words) {
		return QuickVerdict{Valid: false, Message: quickProfanityMsg}
	}

	units := codeUnits(text)
	for _, r := range disallowedPatterns[:quickPatterns] {
		if matches(r.re, units, false) {
			return QuickVerdict{Valid: false, Message: quickDisallowedMsg}
		}
	}
	return QuickVerdict{Valid: true}
}

// quickWords is the number of leading words checked for profanity in quick mode
const quickWords = 10

// checkQuality rejects too short text and text made mostly of non-letters, lengths in UTF-16 code units
func checkQuality(text string) Verdict {
	total := TextLen(text)
	if total < 5 {
		return tooShortVerdict
	}

	letters := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
		}
	}
	if total > 10 && float64(letters)/float64(total) < 0.5 {
		return gibberishVerdict
	}
	return cleanVerdict
}

func hasProfanity(words []string) bool {
	for _, w := range words {
		if IsProfanity(stripToken(w)) {
			return true
		}
	}
	return false
}

// stripToken removes everything except ASCII letters, digits and underscore
func stripToken(w string) string {
	var sb strings.Builder
	sb.Grow(len(w))
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func mentionsSensitiveTopic(lower string) bool {
	for _, t := range sensitiveTopics {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// TextLen returns text length in UTF-16 code units, the way the mobile client counts characters.
// An emoji outside the basic plane counts as two.
func TextLen(text string) int {
	res := 0
	for _, r := range text {
		res += utf16.RuneLen(r)
	}
	return res
}

// codeUnits splits text into UTF-16 code units, one rune per unit. Patterns run over them,
// so "." matches a half of a surrogate pair and a repeated emoji is not a repeated character.
func codeUnits(text string) []rune {
	enc := utf16.Encode([]rune(text))
	res := make([]rune, len(enc))
	for i, u := range enc {
		res[i] = rune(u)
	}
	return res
}

// matches reports pattern match. regexp2 errors only on match timeout, onErr decides the outcome then.
func matches(re *regexp2.Regexp, units []rune, onErr bool) bool {
	ok, err := re.MatchRunes(units)
	if err != nil {
		log.Printf("[WARN] pattern %s failed, %v", re.String(), err)
		return onErr
	}
	return ok
}
