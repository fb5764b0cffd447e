// Package normalize rewrites raw support questions into a canonical form
// before they are embedded. High-frequency phrasings are collapsed onto a
// canonical phrase and low-signal filler is stripped, which raises retrieval
// recall without a larger model. Applied to incoming queries only; corpus
// questions are assumed already curated.
package normalize

import "strings"

// rule maps a variant phrase to its canonical phrase. Rules are applied in
// table order against the evolving string, so later rules see earlier
// replacements. Order is load-bearing; do not sort or convert to a map.
type rule struct {
	variant   string
	canonical string
}

var aliases = []rule{
	// timezone
	{"timezone of the server", "server timezone"},
	{"server timezone", "server timezone"},
	{"what timezone", "server timezone"},
	{"time zone", "timezone"},
	{"server time", "server timezone"},

	// rules
	{"rules of the server", "server rules"},
	{"server rules", "server rules"},
	{"what are the rules", "server rules"},
	{"guidelines", "server rules"},

	// getting started
	{"how to start", "get started"},
	{"getting started", "get started"},
	{"new here", "get started"},
	{"beginner", "get started"},

	// roles
	{"how to get roles", "get roles"},
	{"assign roles", "get roles"},
	{"role assignment", "get roles"},

	// moderators
	{"who are mods", "moderators"},
	{"admin", "moderators"},
	{"staff", "moderators"},

	// reporting
	{"report issue", "report problem"},
	{"report someone", "report problem"},
	{"complaint", "report problem"},

	// voice channels
	{"voice channels", "voice channels"},
	{"vc", "voice channels"},
	{"voice chat", "voice channels"},

	// invites
	{"invite friends", "invite friends"},
	{"add friends", "invite friends"},
	{"share server", "invite friends"},

	// music
	{"music bot", "music bot"},
	{"play music", "music bot"},
	{"songs", "music bot"},

	// events
	{"server events", "events"},
	{"activities", "events"},
	{"what events", "events"},

	// suggestions
	{"suggest feature", "suggest new features"},
	{"ideas", "suggest new features"},
	{"feedback", "suggest new features"},

	// levels
	{"rank up", "level up"},
	{"ranking", "level up"},
	{"experience", "level up"},

	// channels
	{"create channel", "create my own channel"},
	{"new channel", "create my own channel"},

	// technical support
	{"tech help", "technical issues"},
	{"support", "technical issues"},
	{"problem", "technical issues"},
}

// fillers are removed from anywhere in the string, not just the prefix.
var fillers = []string{
	"what is", "what are", "how do i", "can i", "could you",
	"please", "thank you", "thanks",
}

// Normalize canonicalizes a raw query. It is pure, never fails, and may
// return the empty string. Normalize is not idempotent in general: alias
// replacement operates on substrings and can grow the text on repeat
// application (the canonical phrase may itself contain a later variant).
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	for _, r := range aliases {
		if strings.Contains(s, r.variant) {
			s = strings.ReplaceAll(s, r.variant, r.canonical)
		}
	}
	for _, f := range fillers {
		s = strings.ReplaceAll(s, f, "")
	}
	return strings.TrimSpace(s)
}
