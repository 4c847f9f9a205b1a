package motivation

import (
	"encoding/json"
	"fmt"
)

// Affinity classifies how one imperative relates to another.
type Affinity uint8

const (
	Indifferent Affinity = iota
	Attracted
	Aversion
)

func (a Affinity) String() string {
	switch a {
	case Attracted:
		return "attracted"
	case Aversion:
		return "aversion"
	default:
		return "indifferent"
	}
}

// Weight is the signed strength used when scoring interactions.
func (a Affinity) Weight() float64 {
	switch a {
	case Attracted:
		return 1
	case Aversion:
		return -1
	default:
		return 0
	}
}

// sameImperativeAffinity is the mild pull between entities sharing a drive.
const sameImperativeAffinity = 0.3

// InteractionTable holds exactly one Affinity per imperative. The array
// length makes the classification total; the zero value is Indifferent.
type InteractionTable [NumImperatives]Affinity

// Of returns the affinity toward other.
func (t InteractionTable) Of(other Imperative) Affinity {
	if !other.Valid() {
		return Indifferent
	}
	return t[other]
}

// With returns lists of imperatives grouped by affinity.
func (t InteractionTable) With(a Affinity) []Imperative {
	var out []Imperative
	for i, v := range t {
		if v == a {
			out = append(out, Imperative(i))
		}
	}
	return out
}

type tableJSON struct {
	Attracted   []Imperative `json:"attracted"`
	Aversion    []Imperative `json:"aversion"`
	Indifferent []Imperative `json:"indifferent"`
}

func (t InteractionTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{
		Attracted:   t.With(Attracted),
		Aversion:    t.With(Aversion),
		Indifferent: t.With(Indifferent),
	})
}

// UnmarshalJSON fills unlisted imperatives as indifferent and rejects an
// imperative listed under more than one affinity.
func (t *InteractionTable) UnmarshalJSON(b []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out InteractionTable
	var seen [NumImperatives]bool
	for _, group := range []struct {
		list []Imperative
		aff  Affinity
	}{{raw.Attracted, Attracted}, {raw.Aversion, Aversion}, {raw.Indifferent, Indifferent}} {
		for _, imp := range group.list {
			if seen[imp] {
				return fmt.Errorf("interaction table: %s classified twice", imp)
			}
			seen[imp] = true
			out[imp] = group.aff
		}
	}
	*t = out
	return nil
}

var defaultAttractions = [NumImperatives][]Imperative{
	Survive:   {Protect, Share, Connect},
	Expand:    {Consume, Transform, Discover},
	Protect:   {Preserve, Connect, Balance},
	Discover:  {Transform, Create, Expand},
	Create:    {Transform, Discover, Share},
	Destroy:   {Transform, Dominate, Consume},
	Transform: {Create, Discover, Expand},
	Preserve:  {Protect, Balance, Isolate},
	Connect:   {Share, Survive, Protect},
	Isolate:   {Preserve, Protect},
	Dominate:  {Submit, Expand, Consume},
	Submit:    {Dominate, Preserve, Protect},
	Balance:   {Preserve, Protect, Connect},
	Consume:   {Expand, Destroy, Dominate},
	Share:     {Connect, Create, Survive},
}

var defaultAversions = [NumImperatives][]Imperative{
	Survive:   {Destroy, Consume, Isolate},
	Expand:    {Preserve, Isolate, Submit},
	Protect:   {Destroy, Consume},
	Discover:  {Preserve, Isolate, Submit},
	Create:    {Destroy, Consume},
	Destroy:   {Create, Preserve, Protect},
	Transform: {Preserve, Isolate},
	Preserve:  {Destroy, Transform, Expand},
	Connect:   {Isolate, Dominate},
	Isolate:   {Connect, Share, Expand},
	Dominate:  {Balance, Share, Connect},
	Submit:    {Expand, Destroy},
	Balance:   {Destroy, Dominate, Consume},
	Consume:   {Preserve, Share, Create},
	Share:     {Consume, Dominate, Isolate},
}

// DefaultInteractions derives the interaction table for an imperative.
func DefaultInteractions(imp Imperative) InteractionTable {
	var t InteractionTable
	if !imp.Valid() {
		return t
	}
	for _, o := range defaultAttractions[imp] {
		t[o] = Attracted
	}
	for _, o := range defaultAversions[imp] {
		t[o] = Aversion
	}
	return t
}

// ImperativeAffinity scores how a holder of a relates to a holder of b.
func ImperativeAffinity(a, b Imperative) float64 {
	if a == b {
		return sameImperativeAffinity
	}
	return DefaultInteractions(a).Of(b).Weight()
}
