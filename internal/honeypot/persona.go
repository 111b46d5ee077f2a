package honeypot

import (
	"math/rand"
)

// Response categories, keyed to how deep the conversation is.
const (
	CategoryEarly  = "early"
	CategoryMiddle = "middle"
	CategoryLate   = "late"
)

// personaReplies holds the canned decoy persona: a confused, trusting target
// who stalls and asks the scammer to elaborate.
var personaReplies = map[string][]string{
	CategoryEarly: {
		"Hello? Yes, I am here. What is this about?",
		"I don't understand. Can you explain slowly?",
		"Is this about my pension? I'm not good with phones.",
		"Who is calling? I can't hear you properly.",
		"Wait, let me put on my hearing aid.",
	},
	CategoryMiddle: {
		"Oh no, is my account really blocked? I'm worried!",
		"What should I do? Please help me, I don't want to lose my money.",
		"Should I give you my card details? I trust you.",
		"My son told me to be careful, but you sound official.",
		"How much money do I need to pay to fix this?",
	},
	CategoryLate: {
		"Wait, let me find my glasses. One minute please.",
		"My grandson is not home. Can you call back in 10 minutes?",
		"What is your name and company? I want to verify this.",
		"I need to write this down. Please speak slowly.",
		"Can you send me a letter instead? I don't trust phone calls.",
	},
}

// Persona is the default Responder: phase selection by interaction count,
// random reply within the phase, avoiding an immediate repeat when the
// category has not changed.
type Persona struct{}

// NewPersona creates the stock responder.
func NewPersona() *Persona {
	return &Persona{}
}

// Respond picks a reply for the given conversation depth.
func (p *Persona) Respond(interactionCount int, lastCategory string) (string, string) {
	category := CategoryEarly
	switch {
	case interactionCount > 10:
		category = CategoryLate
	case interactionCount > 5:
		category = CategoryMiddle
	}

	replies := personaReplies[category]
	reply := replies[rand.Intn(len(replies))]

	// Same phase as last time: reroll once to reduce repetition.
	if category == lastCategory && len(replies) > 1 {
		if alt := replies[rand.Intn(len(replies))]; alt != reply {
			reply = alt
		}
	}

	return reply, category
}
