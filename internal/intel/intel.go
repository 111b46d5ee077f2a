// Package intel implements weighted keyword scoring and structured
// identifier extraction over inbound scammer messages.
//
// Scoring is a pure function of the message and the configured tables:
// callers own all cumulative session state.
package intel

import (
	"regexp"
	"strings"
)

// MinMessageLength is the early-exit floor. Shorter messages are noise
// (acks, "ok", emoji) and score zero without touching the tables.
const MinMessageLength = 10

// Extractor pairs a pattern kind with its compiled regex. Patterns are
// supplied by the caller; the scorer only decides when to run them.
type Extractor struct {
	Kind    string
	Pattern *regexp.Regexp
}

// Item is a single raw extracted identifier. Duplicates across messages are
// expected here; deduplication happens at report-build time.
type Item struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Result is the outcome of scoring one message.
type Result struct {
	Delta     int            // weighted score contribution of this message
	Matched   map[string]int // keyword → occurrence count, only keywords that hit
	Extracted []Item         // raw matches, unfiltered
}

// Scorer scores messages against a weighted keyword table and, lazily, a set
// of pattern extractors.
type Scorer struct {
	keywords   map[string]int // lowercase keyword → weight
	extractors []Extractor
}

// NewScorer creates a scorer. Keywords are normalized to lowercase.
func NewScorer(keywords map[string]int, extractors []Extractor) *Scorer {
	normalized := make(map[string]int, len(keywords))
	for kw, w := range keywords {
		normalized[strings.ToLower(kw)] = w
	}
	return &Scorer{keywords: normalized, extractors: extractors}
}

// Score evaluates a single message. Each case-insensitive occurrence of a
// keyword contributes its weight; occurrences are counted non-overlapping,
// with no word-boundary enforcement. Extractors run only when at least one
// keyword matched, so pattern work is skipped on benign vocabulary.
func (s *Scorer) Score(message string) Result {
	res := Result{Matched: map[string]int{}}

	if len(message) < MinMessageLength {
		return res
	}

	lower := strings.ToLower(message)
	for kw, weight := range s.keywords {
		count := strings.Count(lower, kw)
		if count > 0 {
			res.Matched[kw] = count
			res.Delta += weight * count
		}
	}

	if len(res.Matched) == 0 {
		return res
	}

	for _, ex := range s.extractors {
		if ex.Pattern == nil {
			continue // fail-open on a malformed extractor
		}
		for _, m := range ex.Pattern.FindAllString(message, -1) {
			res.Extracted = append(res.Extracted, Item{Kind: ex.Kind, Value: m})
		}
	}

	return res
}

// DefaultKeywords is the stock weighted vocabulary. Credential-harvesting
// terms weigh double; the rest are pressure/urgency vocabulary.
func DefaultKeywords() map[string]int {
	return map[string]int{
		"urgent":   1,
		"verify":   1,
		"otp":      2,
		"cvv":      2,
		"password": 2,
		"block":    1,
		"suspend":  1,
		"winner":   1,
		"prize":    1,
		"refund":   1,
		"account":  1,
		"confirm":  1,
	}
}

// Stock identifier patterns, compiled once at startup.
var (
	upiPattern  = regexp.MustCompile(`[a-zA-Z0-9.\-_]{2,}@[a-zA-Z]{3,}`)
	acctPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	urlPattern  = regexp.MustCompile(`http[s]?://[^\s]+`)
)

// Extractor kinds reported in callbacks and metrics.
const (
	KindUPI     = "upi"
	KindAccount = "account"
	KindURL     = "url"
)

// DefaultExtractors returns the stock extractor set: UPI payment handles,
// bank account numbers, and URLs.
func DefaultExtractors() []Extractor {
	return []Extractor{
		{Kind: KindUPI, Pattern: upiPattern},
		{Kind: KindAccount, Pattern: acctPattern},
		{Kind: KindURL, Pattern: urlPattern},
	}
}
