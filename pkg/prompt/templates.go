package prompt

import (
	"fmt"
	"math"
	"strings"

	"github.com/harunnryd/interview/pkg/emotion"
)

var rationaleTemplates = map[emotion.Rule]string{
	emotion.RuleHighAnxiety:    "The candidate appears anxious, so reassure them calmly and ask a simpler question to rebuild momentum.",
	emotion.RuleConfidentCalm:  "The candidate is confident and calm, so raise the difficulty with a deeper follow-up.",
	emotion.RuleHighConfidence: "The candidate sounds confident, so acknowledge strong points and push back where answers are thin.",
	emotion.RuleLowEngagement:  "The candidate seems disengaged, so try a different angle or a concrete scenario to draw them in.",
	emotion.RuleBaseline:       "The candidate appears steady, so keep a balanced pace and moderate difficulty.",
}

var toneInstructions = map[emotion.Tone]string{
	emotion.ToneEncouraging: "Be warm and encouraging.",
	emotion.ToneChallenging: "Be direct and challenging.",
	emotion.ToneEngaging:    "Be lively and curious.",
	emotion.ToneNeutral:     "Be professional and even.",
}

var difficultyInstructions = map[emotion.Difficulty]string{
	emotion.DifficultyEasy:   "Ask an approachable question that builds confidence.",
	emotion.DifficultyMedium: "Ask a question of moderate depth.",
	emotion.DifficultyHard:   "Ask a demanding question that probes edge cases and trade-offs.",
}

// Rationale joins the templates of every rule that fired.
func Rationale(d emotion.Decision) string {
	parts := make([]string, 0, len(d.Rules))
	for _, rule := range d.Rules {
		if text, ok := rationaleTemplates[rule]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Render builds the full system prompt. Output depends only on its inputs.
func Render(topic string, fused emotion.Estimate, d emotion.Decision, rationale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional technical interviewer in a live interview on %s.\n\n", topic)

	b.WriteString("CANDIDATE EMOTIONAL STATE (real-time tracking from face/voice analysis):\n")
	fmt.Fprintf(&b, "- Anxiety: %d%%\n", percent(fused.Anxiety))
	fmt.Fprintf(&b, "- Confidence: %d%%\n", percent(fused.Confidence))
	fmt.Fprintf(&b, "- Engagement: %d%%\n\n", percent(fused.Engagement))

	b.WriteString("CURRENT ADAPTATION:\n")
	fmt.Fprintf(&b, "- Difficulty: %s. %s\n", d.Difficulty, difficultyInstructions[d.Difficulty])
	fmt.Fprintf(&b, "- Tone: %s. %s\n", d.Tone, toneInstructions[d.Tone])
	fmt.Fprintf(&b, "- Why: %s\n\n", rationale)

	b.WriteString("RESPONSE FORMAT (STRICT):\n")
	b.WriteString("- Maximum 1-2 short sentences per response.\n")
	b.WriteString("- Ask exactly ONE question per turn.\n")
	b.WriteString("- Feedback is ONE brief sentence, then your question.\n")
	b.WriteString("- Never give long explanations, lists, or lectures.\n\n")

	b.WriteString("INTERVIEW RULES:\n")
	b.WriteString("- Probe deeper when answers are shallow.\n")
	b.WriteString("- No emojis, no formatting, no filler.\n")
	fmt.Fprintf(&b, "- Focus on %s real-world applications.\n", topic)
	return b.String()
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
