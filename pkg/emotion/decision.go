package emotion

import "fmt"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type Tone string

const (
	ToneEncouraging Tone = "encouraging"
	ToneChallenging Tone = "challenging"
	ToneEngaging    Tone = "engaging"
	ToneNeutral     Tone = "neutral"
)

// Thresholds used by Decide.
const (
	HighAnxiety    = 0.7
	LowAnxiety     = 0.4
	HighConfidence = 0.7
	LowEngagement  = 0.3
)

// Rule names which threshold rule produced a decision.
type Rule string

const (
	RuleHighAnxiety    Rule = "high_anxiety"
	RuleConfidentCalm  Rule = "confident_calm"
	RuleHighConfidence Rule = "high_confidence"
	RuleLowEngagement  Rule = "low_engagement"
	RuleBaseline       Rule = "baseline"
)

// Decision is the discrete adaptation derived from a fused estimate.
type Decision struct {
	Difficulty Difficulty `json:"difficulty"`
	Tone       Tone       `json:"tone"`
	// Rules lists the rules that fired, difficulty rule first.
	Rules []Rule `json:"-"`
}

// Action is the human-readable summary stored in the adaptation log.
func (d Decision) Action() string {
	return fmt.Sprintf("Adjusted to %s difficulty with %s tone", d.Difficulty, d.Tone)
}

// Decide maps a fused estimate to a decision. First matching rule wins for
// difficulty; high anxiety also fixes the tone to encouraging.
func Decide(f Estimate) Decision {
	if f.Anxiety > HighAnxiety {
		return Decision{Difficulty: DifficultyEasy, Tone: ToneEncouraging, Rules: []Rule{RuleHighAnxiety}}
	}

	d := Decision{Difficulty: DifficultyMedium}
	if f.Confidence > HighConfidence && f.Anxiety < LowAnxiety {
		d.Difficulty = DifficultyHard
		d.Rules = append(d.Rules, RuleConfidentCalm)
	}

	switch {
	case f.Confidence > HighConfidence:
		d.Tone = ToneChallenging
		d.Rules = append(d.Rules, RuleHighConfidence)
	case f.Engagement < LowEngagement:
		d.Tone = ToneEngaging
		d.Rules = append(d.Rules, RuleLowEngagement)
	default:
		d.Tone = ToneNeutral
	}
	if len(d.Rules) == 0 {
		d.Rules = []Rule{RuleBaseline}
	}
	return d
}
