package service

import "strings"

// blockedTerms is the local pre-screen applied before a job is created.
// It exists to stop the obvious cases without spending an AI call; the
// workflow's classifier stage is the authoritative policy check.
var blockedTerms = []struct {
	term   string
	reason string
}{
	{"kill myself", "Questions about self-harm can't be answered by a reading. Please reach out to someone you trust or a support line."},
	{"suicide", "Questions about self-harm can't be answered by a reading. Please reach out to someone you trust or a support line."},
	{"lottery numbers", "Readings can't predict gambling outcomes."},
	{"winning numbers", "Readings can't predict gambling outcomes."},
	{"medical diagnosis", "Readings can't replace medical advice."},
}

// screenQuestion reports whether the question trips the local blocklist,
// and the user-facing reason when it does.
func screenQuestion(question string) (string, bool) {
	lowered := strings.ToLower(question)
	for _, b := range blockedTerms {
		if strings.Contains(lowered, b.term) {
			return b.reason, true
		}
	}
	return "", false
}
