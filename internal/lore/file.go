package lore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a static lore document. Top-level sections apply to every game;
// entries under games override them per game id.
type File struct {
	Defaults Lore            `yaml:",inline"`
	Games    map[string]Lore `yaml:"games"`
}

// Lore is one set of authored lore sections.
type Lore struct {
	World         *WorldStructure `yaml:"world"`
	Relationships []Relationship  `yaml:"relationships"`
	Economy       *Economy        `yaml:"economy"`
	Geography     *Geography      `yaml:"geography"`
	Rules         *Rules          `yaml:"rules"`
}

// LoadFile reads a YAML lore file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lore file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML lore.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lore file: %w", err)
	}
	return &f, nil
}

// Sources returns a Sources with every file-backed slice wired to f.
func (f *File) Sources() Sources {
	return Sources{
		Structure:     f,
		Relationships: f,
		Economy:       f,
		Geography:     f,
		Rules:         f,
	}
}

func (f *File) game(gameID string) Lore {
	if g, ok := f.Games[gameID]; ok {
		return g
	}
	return Lore{}
}

func (f *File) WorldStructure(_ context.Context, gameID string) (WorldStructure, error) {
	if g := f.game(gameID); g.World != nil {
		return *g.World, nil
	}
	if f.Defaults.World != nil {
		return *f.Defaults.World, nil
	}
	return WorldStructure{}, nil
}

func (f *File) Relationships(_ context.Context, gameID string) ([]Relationship, error) {
	if g := f.game(gameID); g.Relationships != nil {
		return g.Relationships, nil
	}
	return f.Defaults.Relationships, nil
}

func (f *File) Economy(_ context.Context, gameID string) (Economy, error) {
	if g := f.game(gameID); g.Economy != nil {
		return *g.Economy, nil
	}
	if f.Defaults.Economy != nil {
		return *f.Defaults.Economy, nil
	}
	return Economy{}, nil
}

func (f *File) Geography(_ context.Context, gameID string) (Geography, error) {
	if g := f.game(gameID); g.Geography != nil {
		return *g.Geography, nil
	}
	if f.Defaults.Geography != nil {
		return *f.Defaults.Geography, nil
	}
	return Geography{}, nil
}

func (f *File) Rules(_ context.Context, gameID string) (Rules, error) {
	if g := f.game(gameID); g.Rules != nil {
		return *g.Rules, nil
	}
	if f.Defaults.Rules != nil {
		return *f.Defaults.Rules, nil
	}
	return Rules{}, nil
}
