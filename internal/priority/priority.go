// Package priority classifies customer message text into a conversation
// priority using keyword heuristics. It mirrors the triage rules the Branch
// backend applies when a conversation is created, so agents can preview how
// an incoming message would be ranked.
package priority

import (
	"sort"
	"strings"

	"github.com/branchlabs/branch-cli/internal/api"
)

// criticalKeywords escalate straight to urgent on a single match.
var criticalKeywords = []string{"emergency", "fraud", "scam", "hacked", "urgent"}

var urgentKeywords = []string{
	// Loan-related urgent terms
	"loan approval", "loan disbursement", "disburse", "disbursed", "when will my loan",
	"loan status", "waiting for loan", "need loan urgently", "urgent loan",
	"loan pending", "loan delay", "delayed loan", "loan rejection", "rejected loan",
	"appeal", "reapply",

	// Account access issues
	"cannot login", "can't login", "locked out", "account blocked", "suspended",
	"frozen account", "cannot access", "can't access", "password reset", "otp not received",
	"verification failed",

	// Financial distress
	"emergency", "urgent", "asap", "immediately", "right now", "desperate",
	"need money", "financial emergency", "medical emergency", "hospital",

	// Payment issues
	"payment failed", "transaction failed", "money deducted", "double charged",
	"wrong amount", "refund", "reversal", "missing payment", "payment stuck",

	// Fraud/security
	"fraud", "scam", "hacked", "unauthorized", "stolen", "suspicious activity",
	"security breach", "identity theft",

	// Deadline related
	"deadline", "due date", "overdue", "late fee", "penalty", "expires today",
	"last day",
}

var highKeywords = []string{
	// Loan inquiries
	"loan", "borrow", "credit", "emi", "repayment", "interest rate",
	"loan amount", "eligibility", "apply for loan",

	// Account issues
	"account problem", "update details", "change phone", "change email",
	"kyc", "verification", "document upload",

	// Payment related
	"payment", "transfer", "send money", "receive money", "transaction",
	"balance", "statement",

	// Complaints
	"complaint", "issue", "problem", "not working", "error", "bug", "glitch",
	"disappointed", "frustrated", "angry", "unhappy",
}

var mediumKeywords = []string{
	// General inquiries
	"how to", "help", "guide", "tutorial", "information", "details",
	"question", "query", "inquiry",

	// Feature related
	"feature", "option", "setting", "preference", "notification",

	// Account management
	"profile", "update", "change", "modify",
}

var lowKeywords = []string{
	// Feedback
	"feedback", "suggestion", "recommend", "improve",
	"thank you", "thanks", "appreciate", "great service",
	"good", "excellent", "wonderful",

	// Greetings
	"hi", "hello", "hey", "good morning", "good evening",
}

// Result is the outcome of classifying one message.
type Result struct {
	Priority   string   `json:"priority"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Detect classifies a message into a priority with a confidence score.
//
// Two urgent keyword hits, or any single critical keyword, yield urgent.
// Below that the tiers cascade: strong high-tier signal yields high, any
// medium or residual high signal yields medium, pure pleasantries yield low.
// A message matching nothing defaults to medium at 0.5 confidence.
func Detect(message string) Result {
	lower := strings.ToLower(message)

	urgentMatches := countMatches(lower, urgentKeywords)
	if urgentMatches >= 2 || containsAny(lower, criticalKeywords) {
		return Result{
			Priority:   api.PriorityUrgent,
			Confidence: clamp(0.9+float64(urgentMatches)*0.02, 1.0),
			Keywords:   Keywords(message),
		}
	}

	highMatches := countMatches(lower, highKeywords)
	if highMatches >= 2 || urgentMatches >= 1 {
		return Result{
			Priority:   api.PriorityHigh,
			Confidence: clamp(0.7+float64(highMatches)*0.05+float64(urgentMatches)*0.1, 0.89),
			Keywords:   Keywords(message),
		}
	}

	mediumMatches := countMatches(lower, mediumKeywords)
	if mediumMatches >= 1 || highMatches >= 1 {
		return Result{
			Priority:   api.PriorityMedium,
			Confidence: clamp(0.5+float64(mediumMatches)*0.05+float64(highMatches)*0.1, 0.69),
			Keywords:   Keywords(message),
		}
	}

	lowMatches := countMatches(lower, lowKeywords)
	if lowMatches >= 1 {
		return Result{
			Priority:   api.PriorityLow,
			Confidence: clamp(0.3+float64(lowMatches)*0.05, 0.49),
			Keywords:   Keywords(message),
		}
	}

	return Result{Priority: api.PriorityMedium, Confidence: 0.5}
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

// Sentiment summarizes the emotional tone of a message.
type Sentiment struct {
	Score              float64 `json:"score"`
	PositiveIndicators int     `json:"positive_indicators"`
	NegativeIndicators int     `json:"negative_indicators"`
	UrgencyIndicators  int     `json:"urgency_indicators"`
	Overall            string  `json:"overall"`
}

var positiveWords = []string{
	"thank", "thanks", "appreciate", "great", "excellent", "wonderful",
	"good", "happy", "satisfied", "helpful", "amazing", "love",
}

var negativeWords = []string{
	"angry", "frustrated", "disappointed", "upset", "terrible", "worst",
	"horrible", "hate", "annoying", "useless", "pathetic", "disgusting",
}

var urgencyWords = []string{"urgent", "asap", "immediately", "emergency", "desperate", "help"}

// AnalyzeSentiment scores a message on a -1..1 scale from keyword counts.
// Scores above 0.2 read as positive, below -0.2 as negative.
func AnalyzeSentiment(message string) Sentiment {
	lower := strings.ToLower(message)

	positive := countMatches(lower, positiveWords)
	negative := countMatches(lower, negativeWords)
	urgency := countMatches(lower, urgencyWords)

	total := positive + negative
	if total < 1 {
		total = 1
	}
	score := float64(positive-negative) / float64(total)

	overall := "neutral"
	switch {
	case score > 0.2:
		overall = "positive"
	case score < -0.2:
		overall = "negative"
	}

	return Sentiment{
		Score:              score,
		PositiveIndicators: positive,
		NegativeIndicators: negative,
		UrgencyIndicators:  urgency,
		Overall:            overall,
	}
}

// Keywords returns up to 10 unique classification keywords found in the
// message, sorted for stable output.
func Keywords(message string) []string {
	lower := strings.ToLower(message)

	seen := make(map[string]struct{})
	for _, group := range [][]string{urgentKeywords, highKeywords, mediumKeywords, lowKeywords} {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				seen[kw] = struct{}{}
			}
		}
	}

	found := make([]string, 0, len(seen))
	for kw := range seen {
		found = append(found, kw)
	}
	sort.Strings(found)
	if len(found) > 10 {
		found = found[:10]
	}
	return found
}
