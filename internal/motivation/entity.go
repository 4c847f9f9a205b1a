package motivation

import (
	"hash/fnv"
	"slices"
)

// Function is the mechanical half of an entity: what drives it.
type Function struct {
	Imperative     Imperative       `json:"imperative"`
	Ethos          Ethos            `json:"ethos"`
	Root           Root             `json:"root"`
	Manner         string           `json:"manner"`
	Interactions   InteractionTable `json:"interactions"`
	AdoptedAspects []string         `json:"adopted_aspects,omitempty"`
	Soulscape      string           `json:"soulscape,omitempty"`
	Qualia         string           `json:"qualia,omitempty"`
	Fervor         float64          `json:"fervor"` // 0..1, decays toward 0
}

// Form is the descriptive half of an entity. It carries no mechanics.
type Form struct {
	Legacy    string `json:"legacy,omitempty"`
	Crest     string `json:"crest,omitempty"`
	Archetype string `json:"archetype,omitempty"`
	Persona   string `json:"persona,omitempty"`
}

// Entity is a character, location, event or concept in the catalog.
type Entity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      EntityKind `json:"kind"`
	Influence float64    `json:"influence"` // weight in the dominant-imperative vote; 0 means 1
	Function  Function   `json:"function"`
	Form      Form       `json:"form"`
}

// NewEntity builds an entity with its interaction table, manner and form
// derived from the imperative.
func NewEntity(id, name string, kind EntityKind, imp Imperative, ethos Ethos, root Root) Entity {
	e := Entity{
		ID:   id,
		Name: name,
		Kind: kind,
		Function: Function{
			Imperative: imp,
			Ethos:      ethos,
			Root:       root,
		},
	}
	e.reshape()
	e.Form = Form{
		Crest:     crests[imp],
		Archetype: archetypes[imp],
		Persona:   name,
	}
	return e
}

// SetImperative switches the drive and rederives dependent fields.
func (e *Entity) SetImperative(imp Imperative) {
	e.Function.Imperative = imp
	e.reshape()
	e.Form.Crest = crests[imp]
	e.Form.Archetype = archetypes[imp]
}

// Adopt adds an aspect if not already held. Reports whether it was new.
func (e *Entity) Adopt(aspect string) bool {
	if slices.Contains(e.Function.AdoptedAspects, aspect) {
		return false
	}
	e.Function.AdoptedAspects = append(e.Function.AdoptedAspects, aspect)
	return true
}

func (e *Entity) reshape() {
	e.Function.Interactions = DefaultInteractions(e.Function.Imperative)
	e.Function.Manner = manner(e.ID, e.Function.Ethos, e.Function.Imperative)
}

func (e Entity) weight() float64 {
	w := e.Influence
	if w <= 0 {
		w = 1
	}
	if e.Kind == Location {
		w *= 0.5
	}
	return w
}

var adverbs = [...][]string{
	Positive: {"joyfully", "hopefully", "gracefully", "warmly"},
	Neutral:  {"steadily", "calmly", "deliberately", "quietly"},
	Negative: {"desperately", "angrily", "fearfully", "bitterly"},
}

var verbs = [NumImperatives]string{
	Survive: "endures", Expand: "grows", Protect: "guards", Discover: "seeks",
	Create: "creates", Destroy: "destroys", Transform: "changes", Preserve: "keeps",
	Connect: "bonds", Isolate: "withdraws", Dominate: "commands", Submit: "yields",
	Balance: "steadies", Consume: "devours", Share: "gives",
}

// manner picks an adverb deterministically from the entity id.
func manner(id string, ethos Ethos, imp Imperative) string {
	opts := adverbs[Neutral]
	if int(ethos) < len(adverbs) {
		opts = adverbs[ethos]
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	verb := "acts"
	if imp.Valid() {
		verb = verbs[imp]
	}
	return opts[h.Sum32()%uint32(len(opts))] + " " + verb
}

var crests = [NumImperatives]string{
	Survive: "Shield of Endurance", Expand: "Spreading Oak", Protect: "Guardian's Wall",
	Discover: "Seeker's Lantern", Create: "Maker's Hammer", Destroy: "Broken Sword",
	Transform: "Phoenix Rising", Preserve: "Eternal Flame", Connect: "Woven Bridge",
	Isolate: "Lone Tower", Dominate: "Iron Crown", Submit: "Bowed Reed",
	Balance: "Scales of Harmony", Consume: "Open Maw", Share: "Open Hand",
}

var archetypes = [NumImperatives]string{
	Survive: "The Survivor", Expand: "The Conqueror", Protect: "The Guardian",
	Discover: "The Explorer", Create: "The Creator", Destroy: "The Destroyer",
	Transform: "The Alchemist", Preserve: "The Keeper", Connect: "The Weaver",
	Isolate: "The Hermit", Dominate: "The Tyrant", Submit: "The Servant",
	Balance: "The Sage", Consume: "The Devourer", Share: "The Giver",
}
