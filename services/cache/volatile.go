package cache

import (
	"regexp"
)

// VolatileReason classifies why a message is unsafe to cache
type VolatileReason string

const (
	VolatileRelativeTime    VolatileReason = "relative_time"
	VolatileAbsoluteDate    VolatileReason = "absolute_date"
	VolatilePersonalContext VolatileReason = "personal_context"
)

var (
	// Relative time references: the correct answer changes as time passes
	relativeTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnow\b`),
		regexp.MustCompile(`(?i)\btoday\b`),
		regexp.MustCompile(`(?i)\btonight\b`),
		regexp.MustCompile(`(?i)\b(yesterday|tomorrow)\b`),
		regexp.MustCompile(`(?i)\bthis (morning|afternoon|evening|week|month|year)\b`),
		regexp.MustCompile(`(?i)\b(latest|current|currently|recent|recently)\b`),
		regexp.MustCompile(`(?i)\bwhat time\b`),
		regexp.MustCompile(`(?i)\bwhat('s| is) the (date|time)\b`),
	}

	// Absolute dates and clock times embedded in the question
	absoluteDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(\s?(am|pm))?\b`),
		regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}\b`),
		regexp.MustCompile(`\b(19|20)\d{2}\b`),
	}

	// First-person context: the answer depends on who is asking
	personalContextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy name is\b`),
		regexp.MustCompile(`(?i)\b(my|our) (name|email|account|order|schedule|calendar|meeting|location)\b`),
		regexp.MustCompile(`(?i)\bremind me\b`),
		regexp.MustCompile(`(?i)\b(i am|i'm) (at|in|on|from)\b`),
		regexp.MustCompile(`(?i)\bwhere am i\b`),
		regexp.MustCompile(`(?i)\bas i (said|mentioned|asked)\b`),
	}
)

// DetectVolatile reports whether a message is time- or context-dependent
// and which reason class matched first. Volatile messages must never be
// cached: the stored answer would go stale or leak another caller's context.
func DetectVolatile(message string) (VolatileReason, bool) {
	for _, pattern := range relativeTimePatterns {
		if pattern.MatchString(message) {
			return VolatileRelativeTime, true
		}
	}
	for _, pattern := range absoluteDatePatterns {
		if pattern.MatchString(message) {
			return VolatileAbsoluteDate, true
		}
	}
	for _, pattern := range personalContextPatterns {
		if pattern.MatchString(message) {
			return VolatilePersonalContext, true
		}
	}
	return "", false
}

// IsVolatile returns true if the message matches any volatile pattern
func IsVolatile(message string) bool {
	_, volatile := DetectVolatile(message)
	return volatile
}
