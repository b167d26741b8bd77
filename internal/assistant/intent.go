package assistant

import (
	"regexp"
	"strings"
)

type intent int

const (
	intentUnknown intent = iota
	intentSetReminder
	intentCancelReminder
	intentWeather
	intentWikipedia
	intentTime
	intentCalculate
	intentTranslate
	intentGreeting
	intentHelp
)

var (
	setReminderRegex    = regexp.MustCompile(`(?:remind me|set (?:a )?reminder)\s+(?:to\s+)?(.+)\s+at\s+(.+)$`)
	cancelReminderRegex = regexp.MustCompile(`cancel\s+(?:the\s+|my\s+)?remind(?:er)?s?\b\s*(?:(?:to|about|for)\s+)?(.*)$`)
	cityRegex           = regexp.MustCompile(`(?:weather|temperature|forecast)\s+(?:in|for|at|of)\s+(.+)$`)
	translateRegex      = regexp.MustCompile(`translate\s+(.+)\s+(?:to|into)\s+(.+)$`)
	wordRegex           = regexp.MustCompile(`[a-z]+`)

	topicPrefixes = []string{"search wikipedia for", "search wikipedia", "look up", "who is", "what is", "wikipedia", "search for", "search"}
)

// detectIntent matches keywords in priority order. command is lower case.
func detectIntent(command string) intent {
	switch {
	case strings.Contains(command, "remind"):
		if cancelReminderRegex.MatchString(command) {
			return intentCancelReminder
		}
		return intentSetReminder
	case containsAny(command, "weather", "temperature", "forecast"):
		return intentWeather
	case containsAny(command, "wikipedia", "search", "look up", "who is", "what is"):
		return intentWikipedia
	case containsAny(command, "time", "clock", "hour"):
		return intentTime
	case containsAny(command, "calculate", "compute"):
		return intentCalculate
	case strings.Contains(command, "translate"):
		return intentTranslate
	case strings.Contains(command, "hello") || hasWord(command, "hi"):
		return intentGreeting
	case strings.Contains(command, "help"):
		return intentHelp
	default:
		return intentUnknown
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasWord(s, word string) bool {
	for _, w := range wordRegex.FindAllString(s, -1) {
		if w == word {
			return true
		}
	}
	return false
}

// parseSetReminder splits "remind me to <text> at <time>" on the last " at ".
func parseSetReminder(command string) (text, timeText string, ok bool) {
	m := setReminderRegex.FindStringSubmatch(command)
	if m == nil {
		return "", "", false
	}
	text, timeText = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	return text, timeText, text != "" && timeText != ""
}

func parseCancelReminder(command string) string {
	m := cancelReminderRegex.FindStringSubmatch(command)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractCity(command string) string {
	m := cityRegex.FindStringSubmatch(command)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(m[1], "?!. "))
}

func extractTopic(command string) string {
	topic := command
	for _, prefix := range topicPrefixes {
		if i := strings.Index(command, prefix); i >= 0 {
			topic = command[i+len(prefix):]
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(topic), "?!."))
}

// parseTranslate splits "translate <text> to <language>" on the last " to ".
func parseTranslate(command string) (text, lang string, ok bool) {
	m := translateRegex.FindStringSubmatch(command)
	if m == nil {
		return "", "", false
	}
	text, lang = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	return text, lang, text != "" && lang != ""
}

func extractExpression(command string) string {
	for _, word := range []string{"calculate", "compute"} {
		command = strings.ReplaceAll(command, word, "")
	}
	return strings.TrimSpace(command)
}
