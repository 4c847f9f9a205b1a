package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

// NarrativeInput is everything a story beat is grounded in.
type NarrativeInput struct {
	World      world.State
	Motivation motivation.State
	Culture    culture.State
	Patterns   []motivation.Pattern
	Lore       lore.Context
	Actions    []story.Action // chronological
	Theme      string
}

// SystemPrompt frames the narrator.
const SystemPrompt = `You are the narrator of a persistent, collaborative story world. Many participants act asynchronously; each beat you write weaves their contributions into one continuous narrative.

Stay consistent with the established lore and the hard rules you are given. Reflect the world's economic and political condition, the drives of its inhabitants and the collective mood. Address every participant action by name. Write vivid prose of 300 to 600 words and end on a hook that invites the next round of actions. Do not break character or mention any simulation.`

// BuildPrompt renders the grounding prompt for one beat.
func BuildPrompt(in NarrativeInput) string {
	var b strings.Builder

	w := in.World
	b.WriteString("=== WORLD STATE ===\n")
	fmt.Fprintf(&b, "Season: %s (%s)\n", w.Season, w.Weather)
	fmt.Fprintf(&b, "Economic health: %.0f%%\n", w.EconomicHealth*100)
	fmt.Fprintf(&b, "Political stability: %.0f%%\n", w.PoliticalStability*100)
	fmt.Fprintf(&b, "Resource availability: %.0f%%\n", w.ResourceAvailability()*100)
	fmt.Fprintf(&b, "Trade volume: %.2fx, resource flow %s\n", w.TradeVolume, w.FlowDirection)
	fmt.Fprintf(&b, "Population: %d, tech level %d, magic level %.1f\n", w.Population, w.TechLevel, w.MagicLevel)
	if kinds := w.ConflictKinds(); len(kinds) > 0 {
		fmt.Fprintf(&b, "Active conflicts: %s\n", strings.Join(kinds, ", "))
	} else {
		b.WriteString("Active conflicts: none\n")
	}
	b.WriteString("\n")

	m := in.Motivation
	b.WriteString("=== FUNCTIONAL FORMALITIES ===\n")
	fmt.Fprintf(&b, "Dominant imperative: %s (strength %.2f)\n", m.Dominant.Imperative, m.Dominant.Strength)
	fmt.Fprintf(&b, "Collective soulscape: %s\n", m.Soulscape)
	if len(in.Patterns) > 0 {
		b.WriteString("Emergent patterns:\n")
		for _, p := range in.Patterns {
			fmt.Fprintf(&b, "- %s", p.Kind)
			if p.Imperative != nil {
				fmt.Fprintf(&b, " around %s", *p.Imperative)
			}
			if len(p.Members) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(p.Members, ", "))
			}
			fmt.Fprintf(&b, " strength %.2f\n", p.Strength)
		}
	}
	for _, e := range m.Characters() {
		fmt.Fprintf(&b, "- %s: %s, %s (%s)\n", e.Name, e.Function.Imperative, e.Function.Manner, e.Form.Archetype)
	}
	b.WriteString("\n")

	c := in.Culture
	b.WriteString("=== CULTURAL/EMOTIONAL CLIMATE ===\n")
	fmt.Fprintf(&b, "Collective mood: %s (valence %.2f, arousal %.2f, dominance %.2f)\n",
		c.Mood, c.VAD.Valence, c.VAD.Arousal, c.VAD.Dominance)
	fmt.Fprintf(&b, "Social tension: %.2f\n", c.SocialTension)
	if len(c.Trends) > 0 {
		trends := make([]string, len(c.Trends))
		for i, t := range c.Trends {
			trends[i] = string(t)
		}
		fmt.Fprintf(&b, "Trends: %s\n", strings.Join(trends, ", "))
	}
	if len(c.Shifts) > 0 {
		shifts := make([]string, len(c.Shifts))
		for i, s := range c.Shifts {
			shifts[i] = string(s)
		}
		fmt.Fprintf(&b, "Shifting toward: %s\n", strings.Join(shifts, ", "))
	}
	b.WriteString("\n")

	writeLore(&b, in.Lore)

	b.WriteString("=== RECENT PLAYER ACTIONS ===\n")
	if len(in.Actions) == 0 {
		b.WriteString("(no actions this cycle)\n")
	}
	for _, a := range in.Actions {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", a.DisplayName(), a.Kind, a.Content)
	}
	b.WriteString("\n")

	b.WriteString("=== NARRATIVE CONSTRAINTS ===\n")
	if in.Theme != "" {
		fmt.Fprintf(&b, "Theme: %s\n", in.Theme)
	}
	for _, law := range in.Lore.Rules.Laws {
		fmt.Fprintf(&b, "- %s\n", law)
	}
	b.WriteString("- Respect every established fact above.\n")
	b.WriteString("- Give each participant's action a visible consequence.\n")
	return b.String()
}

func writeLore(b *strings.Builder, c lore.Context) {
	b.WriteString("=== ESTABLISHED LORE ===\n")
	ws := c.WorldStructure
	if ws.Name != "" {
		fmt.Fprintf(b, "World: %s", ws.Name)
		if ws.Era != "" {
			fmt.Fprintf(b, " (%s)", ws.Era)
		}
		b.WriteString("\n")
	}
	if ws.Description != "" {
		fmt.Fprintf(b, "%s\n", ws.Description)
	}
	if len(ws.Factions) > 0 {
		fmt.Fprintf(b, "Factions: %s\n", strings.Join(ws.Factions, ", "))
	}
	if len(c.History) > 0 {
		b.WriteString("Recent history:\n")
		for _, h := range c.History {
			fmt.Fprintf(b, "- Cycle %d: %s\n", h.Sequence, h.Summary)
		}
	}
	if len(c.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, r := range c.Relationships {
			fmt.Fprintf(b, "- %s and %s: %s (%.1f)\n", r.From, r.To, r.Kind, r.Strength)
		}
	}
	if e := c.Economy; e.Currency != "" || len(e.TradeGoods) > 0 || e.Notes != "" {
		b.WriteString("Economy:")
		if e.Currency != "" {
			fmt.Fprintf(b, " currency %s;", e.Currency)
		}
		if len(e.TradeGoods) > 0 {
			fmt.Fprintf(b, " trade in %s;", strings.Join(e.TradeGoods, ", "))
		}
		if e.Notes != "" {
			fmt.Fprintf(b, " %s", e.Notes)
		}
		b.WriteString("\n")
	}
	if len(c.Geography.Regions) > 0 {
		names := make([]string, len(c.Geography.Regions))
		for i, r := range c.Geography.Regions {
			names[i] = r.Name
		}
		sort.Strings(names)
		fmt.Fprintf(b, "Regions: %s\n", strings.Join(names, ", "))
	}
	if len(c.Geography.Focus) > 0 {
		fmt.Fprintf(b, "Places in play: %s\n", strings.Join(c.Geography.Focus, ", "))
	}
	b.WriteString("\n")
}
