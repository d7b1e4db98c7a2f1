package telegram

// User-facing copy. The sub-hour testing frequency fires every minute and the
// copy says exactly that.
const (
	startFmt = "Hello! I am your personal assistant.\n" +
		"Current persona: %s\n\n" +
		"Available commands:\n" +
		"/personas - List available personas\n" +
		"/set_persona <name> - Switch my personality\n" +
		"/set_frequency <hours> - How often I check in (0.03 = every minute, testing)\n" +
		"/set_timezone <IANA name> - Your local timezone\n" +
		"/status - Current settings and next check-in\n" +
		"/memory_clear - Clear our conversation history\n" +
		"/export_memory - Export our conversation as a CSV file"

	privateUseText = "This bot is for private use only."

	statusFmt = "🧾 Current settings:\n" +
		"• Persona: %s\n• Frequency: %s\n• Timezone: %s\n• Next check-in: %s"

	scheduleDisabledText = "Could not install the schedule; check-ins are disabled until " +
		"frequency and timezone are set again."

	invalidFrequencyFmt = "Invalid frequency. Choose one of: %s (hours; 0.03 pings every minute for testing)."
	invalidTimezoneText = "Invalid timezone. Example: America/New_York"

	memoryClearedText = "Conversation memory has been cleared."
	noHistoryText     = "No conversation history to export."
	exportCaption     = "Here is your conversation history."
	exportFilename    = "conversation_history.csv"
)
