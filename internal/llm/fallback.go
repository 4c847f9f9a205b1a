package llm

import (
	"fmt"
	"strings"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
)

// Tone is the template bucket chosen for a fallback narrative.
type Tone string

const (
	ToneHarsh     Tone = "harsh"
	ToneUneasy    Tone = "uneasy"
	ToneSomber    Tone = "somber"
	ToneHopeful   Tone = "hopeful"
	ToneSurvival  Tone = "survival"
	ToneDiscovery Tone = "discovery"
	ToneSteady    Tone = "steady"
)

type template struct {
	scene     string
	situation string
	options   [3]string
}

var templates = map[Tone]template{
	ToneHarsh: {
		scene:     "Smoke hangs low over the land and every face is set hard. Old grievances have found new blades.",
		situation: "Tempers have boiled over, and whatever was said cannot be unsaid.",
		options:   [3]string{"Strike before the enemy regroups", "Seek a truce while one is still possible", "Retreat and fortify what remains"},
	},
	ToneUneasy: {
		scene:     "Rumors outrun the messengers. Shutters close early and the watch doubles at the gates.",
		situation: "Something is about to give, and no one is sure which way it will fall.",
		options:   [3]string{"Uncover the source of the unrest", "Rally the wavering to a common cause", "Quietly prepare for the worst"},
	},
	ToneSomber: {
		scene:     "A grey quiet settles over the settlements. Work goes on, but without song.",
		situation: "Loss weighs on everyone, and the will to act has thinned.",
		options:   [3]string{"Honor what was lost", "Kindle some small hope", "Let the silence pass"},
	},
	ToneHopeful: {
		scene:     "Market stalls are full and laughter carries across the square. Something new is being built.",
		situation: "Fortune favors the bold while the mood holds.",
		options:   [3]string{"Invest in a shared venture", "Celebrate and bind new friendships", "Push the advantage into new ground"},
	},
	ToneSurvival: {
		scene:     "Stores run thin and every hand is turned to the struggle of getting by.",
		situation: "Survival comes first; ambition waits.",
		options:   [3]string{"Ration what is left", "Search for new supplies", "Band together against the lean days"},
	},
	ToneDiscovery: {
		scene:     "Maps are redrawn by lamplight. Beyond the known roads, something calls.",
		situation: "The unknown is close enough to touch.",
		options:   [3]string{"Venture past the last marker", "Study what has been found", "Share the discovery, or guard it"},
	},
	ToneSteady: {
		scene:     "The world turns at its ordinary pace. Fields are tended and roads are walked.",
		situation: "Small choices now will shape larger turns later.",
		options:   [3]string{"Tend to unfinished business", "Seek out an old acquaintance", "Look for an opportunity others have missed"},
	},
}

// Fixed lines of the fallback narrative.
const (
	FallbackOpening = "The story continues...\n\n"
	QuietLine       = "Time passes quietly in the world, with the wind carrying whispers of distant events yet to unfold."
	FallbackClosing = "\nThe consequences of these actions will ripple through the world, setting the stage for what comes next..."
)

// SelectTone picks the template bucket from the collective mood, the
// cultural shifts of the last tick and the dominant imperative.
func SelectTone(c culture.State, m motivation.State) Tone {
	switch {
	case c.HasShift(culture.ShiftAggression) || c.Mood == culture.Angry:
		return ToneHarsh
	case c.HasShift(culture.ShiftUnrest) || c.Mood == culture.Anxious || c.Mood == culture.Tense:
		return ToneUneasy
	case c.Mood == culture.Depressed || c.Mood == culture.Melancholic || c.Mood == culture.Lethargic:
		return ToneSomber
	case c.HasShift(culture.ShiftHarmony) || c.HasShift(culture.ShiftOptimism) ||
		c.Mood == culture.Triumphant || c.Mood == culture.Excited || c.Mood == culture.Content || c.Mood == culture.Peaceful:
		return ToneHopeful
	}
	switch m.Dominant.Imperative {
	case motivation.Survive:
		return ToneSurvival
	case motivation.Discover, motivation.Transform:
		return ToneDiscovery
	}
	return ToneSteady
}

// Fallback writes the template narrative for in. It is deterministic in its
// input and always succeeds.
func Fallback(in NarrativeInput) (string, Tone) {
	var b strings.Builder
	b.WriteString(FallbackOpening)

	if len(in.Actions) == 0 {
		b.WriteString(QuietLine)
		b.WriteString("\n")
		return b.String(), ToneSteady
	}

	tone := SelectTone(in.Culture, in.Motivation)
	t := templates[tone]

	fmt.Fprintf(&b, "%s, %s.\n\n", in.World.Season, in.World.Weather)
	b.WriteString(t.scene)
	b.WriteString("\n\n")

	for _, a := range in.Actions {
		b.WriteString(actionLine(a))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s\n\n", t.situation)
	b.WriteString("What comes next:\n")
	for _, opt := range t.options {
		fmt.Fprintf(&b, "- %s\n", opt)
	}
	b.WriteString(FallbackClosing)
	return b.String(), tone
}

func actionLine(a story.Action) string {
	name := a.DisplayName()
	switch a.Kind {
	case story.KindDialogue:
		return name + " spoke with conviction, their words echoing through the scene."
	case story.KindAction:
		return name + " took decisive action, changing the course of events."
	case story.KindReaction:
		return name + " responded to the unfolding situation with careful consideration."
	default:
		return name + " contributed to the evolving story."
	}
}
