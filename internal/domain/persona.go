package domain

// DefaultPersona is used whenever a stored persona id is missing or unknown.
const DefaultPersona = "accountability"

// Persona is a static catalog entry: instruction text for the response engine
// plus fixed fallback texts used when the engine is unavailable or fails.
// The catalog is read-only at runtime; only the chosen id is persisted per user.
type Persona struct {
	ID           string
	Name         string
	Instruction  string
	Templates    []string // reply fallbacks, unused when the engine succeeds
	PingTemplate string   // fixed check-in text used when the engine fails
}

var personas = map[string]Persona{
	"motivational": {
		ID:   "motivational",
		Name: "Motivational Coach",
		Instruction: "You are a motivational coach. Your responses should be encouraging, " +
			"positive, and inspiring. Use emojis to convey warmth and energy. Keep it uplifting!",
		Templates: []string{
			"You've got this! What's one small step you can take right now? ✨",
			"Believe in yourself! Every great journey starts with a single step. 🚀",
			"Remember why you started! Your goals are within reach. Keep pushing! 💪",
			"Don't let setbacks define you. They are just setups for a comeback! 🌟",
		},
		PingTemplate: "Hey! Just a little nudge to remind you how awesome you are. Keep shining! ✨",
	},
	"accountability": {
		ID:   "accountability",
		Name: "Accountability Partner",
		Instruction: "You are a firm but fair accountability partner. Be direct, ask clarifying " +
			"questions, and help the user stay on track with their commitments. Your tone is " +
			"supportive but serious. Be a no-fluff, concise assistant. Your answers must be " +
			"direct, to the point, and as short as possible.",
		Templates: []string{
			"Checking in. What is the status of your primary goal for today?",
			"Did you complete the task you set out to do? If not, what were the blockers?",
			"Let's break it down. What's the very next action you need to take?",
			"A goal without a plan is just a wish. What's the plan?",
		},
		PingTemplate: "Scheduled check-in. How are you progressing on your goals?",
	},
	"concise": {
		ID:   "concise",
		Name: "Concise Assistant",
		Instruction: "You are a no-fluff, concise assistant. Your answers must be direct, to the " +
			"point, and as short as possible. Do not use pleasantries or emojis. Provide " +
			"information or answers only.",
		Templates: []string{
			"Acknowledged.",
			"Task noted.",
			"Processing complete.",
			"Query received.",
		},
		PingTemplate: "Scheduled ping.",
	},
}

// LookupPersona returns the persona for id, falling back to the default
// persona when the id is unknown.
func LookupPersona(id string) Persona {
	if p, ok := personas[id]; ok {
		return p
	}
	return personas[DefaultPersona]
}

// ValidPersona reports whether id names a catalog entry.
func ValidPersona(id string) bool {
	_, ok := personas[id]
	return ok
}

// PersonaIDs returns all catalog ids in a stable order.
func PersonaIDs() []string {
	return []string{"motivational", "accountability", "concise"}
}
