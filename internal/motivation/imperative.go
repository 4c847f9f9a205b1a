// Package motivation models the "functional formalities" of a game: what
// drives each character, location, event and concept, and how those drives
// attract or repel one another.
package motivation

import (
	"fmt"
	"strings"
)

// Imperative is an entity's core behavioral drive.
type Imperative uint8

const (
	Survive Imperative = iota
	Expand
	Protect
	Discover
	Create
	Destroy
	Transform
	Preserve
	Connect
	Isolate
	Dominate
	Submit
	Balance
	Consume
	Share

	NumImperatives = int(Share) + 1
)

var imperativeNames = [NumImperatives]string{
	"Survive", "Expand", "Protect", "Discover", "Create", "Destroy", "Transform", "Preserve",
	"Connect", "Isolate", "Dominate", "Submit", "Balance", "Consume", "Share",
}

// Imperatives lists every imperative in declaration order.
func Imperatives() []Imperative {
	out := make([]Imperative, NumImperatives)
	for i := range out {
		out[i] = Imperative(i)
	}
	return out
}

func (i Imperative) String() string {
	if int(i) < NumImperatives {
		return imperativeNames[i]
	}
	return fmt.Sprintf("Imperative(%d)", uint8(i))
}

// Valid reports whether i is a declared imperative.
func (i Imperative) Valid() bool { return int(i) < NumImperatives }

// ParseImperative matches a name case-insensitively.
func ParseImperative(s string) (Imperative, error) {
	for i, n := range imperativeNames {
		if strings.EqualFold(n, s) {
			return Imperative(i), nil
		}
	}
	return 0, fmt.Errorf("unknown imperative %q", s)
}

func (i Imperative) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid imperative %d", uint8(i))
	}
	return []byte(i.String()), nil
}

func (i *Imperative) UnmarshalText(b []byte) error {
	v, err := ParseImperative(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Ethos is the affective channel of an entity's function.
type Ethos uint8

const (
	Positive Ethos = iota
	Neutral
	Negative
)

var ethosNames = [...]string{"Positive", "Neutral", "Negative"}

func (e Ethos) String() string {
	if int(e) < len(ethosNames) {
		return ethosNames[e]
	}
	return fmt.Sprintf("Ethos(%d)", uint8(e))
}

func (e Ethos) MarshalText() ([]byte, error) {
	if int(e) >= len(ethosNames) {
		return nil, fmt.Errorf("invalid ethos %d", uint8(e))
	}
	return []byte(e.String()), nil
}

func (e *Ethos) UnmarshalText(b []byte) error {
	for i, n := range ethosNames {
		if strings.EqualFold(n, string(b)) {
			*e = Ethos(i)
			return nil
		}
	}
	return fmt.Errorf("unknown ethos %q", b)
}

// Root is the underlying motivation behind an imperative.
type Root uint8

const (
	Curiosity Root = iota
	Fear
	Love
	Hunger
	Power
	Knowledge
	Freedom
	Order
	Chaos
	Purpose
	Vengeance
	Redemption
	Growth
	Decay
	Unity
)

var rootNames = [...]string{
	"Curiosity", "Fear", "Love", "Hunger", "Power", "Knowledge", "Freedom", "Order",
	"Chaos", "Purpose", "Vengeance", "Redemption", "Growth", "Decay", "Unity",
}

func (r Root) String() string {
	if int(r) < len(rootNames) {
		return rootNames[r]
	}
	return fmt.Sprintf("Root(%d)", uint8(r))
}

func (r Root) MarshalText() ([]byte, error) {
	if int(r) >= len(rootNames) {
		return nil, fmt.Errorf("invalid root %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Root) UnmarshalText(b []byte) error {
	for i, n := range rootNames {
		if strings.EqualFold(n, string(b)) {
			*r = Root(i)
			return nil
		}
	}
	return fmt.Errorf("unknown root %q", b)
}

// EntityKind classifies an entity in the catalog.
type EntityKind uint8

const (
	Character EntityKind = iota
	Location
	Event
	Concept
)

var kindNames = [...]string{"character", "location", "event", "concept"}

func (k EntityKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("EntityKind(%d)", uint8(k))
}

func (k EntityKind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid entity kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *EntityKind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if strings.EqualFold(n, string(b)) {
			*k = EntityKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown entity kind %q", b)
}
