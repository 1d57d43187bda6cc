// Package parser decodes deck files: YAML documents describing a deck and
// its notes. Field order inside a note is significant (it feeds combined
// dedup keys), so fields are decoded through yaml.Node rather than a map.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/models"
)

// NoteSpec is one note entry in a deck file.
type NoteSpec struct {
	Fields []models.Field
	Tags   []string
	Cards  int
}

// Deck holds the parsed contents of a single deck file.
type Deck struct {
	Name  string
	Notes []NoteSpec
}

// Parse decodes raw deck file bytes.
//
// Expected shape:
//
//	deck: Spanish Basics
//	notes:
//	  - fields:
//	      Front: hola
//	      Back: hello
//	    tags: [greetings]
//	    cards: 2
//
// cards defaults to 1 when omitted; an explicit 0 marks an orphaned note
// that stays in the collection but is excluded from dedup runs.
func Parse(data []byte) (*Deck, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parser: invalid YAML: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &Deck{}, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parser: deck file must be a mapping, got %s", kindName(doc.Kind))
	}

	deck := &Deck{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		val := doc.Content[i+1]
		switch key.Value {
		case "deck":
			deck.Name = strings.TrimSpace(val.Value)
		case "notes":
			notes, err := parseNotes(val)
			if err != nil {
				return nil, err
			}
			deck.Notes = notes
		}
	}

	return deck, nil
}

func parseNotes(node *yaml.Node) ([]NoteSpec, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parser: notes must be a sequence, got %s", kindName(node.Kind))
	}
	out := make([]NoteSpec, 0, len(node.Content))
	for i, item := range node.Content {
		spec, err := parseNote(item)
		if err != nil {
			return nil, fmt.Errorf("parser: note %d: %w", i, err)
		}
		out = append(out, spec)
	}
	return out, nil
}

func parseNote(node *yaml.Node) (NoteSpec, error) {
	spec := NoteSpec{Cards: 1}
	if node.Kind != yaml.MappingNode {
		return spec, fmt.Errorf("must be a mapping, got %s", kindName(node.Kind))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		switch key.Value {
		case "fields":
			fields, err := parseFields(val)
			if err != nil {
				return spec, err
			}
			spec.Fields = fields
		case "tags":
			var tags []string
			if err := val.Decode(&tags); err != nil {
				return spec, fmt.Errorf("tags: %w", err)
			}
			spec.Tags = tags
		case "cards":
			var cards int
			if err := val.Decode(&cards); err != nil {
				return spec, fmt.Errorf("cards: %w", err)
			}
			if cards < 0 {
				return spec, fmt.Errorf("cards: must be >= 0, got %d", cards)
			}
			spec.Cards = cards
		}
	}

	if len(spec.Fields) == 0 {
		return spec, fmt.Errorf("no fields")
	}
	return spec, nil
}

// parseFields walks the fields mapping node pairwise, preserving the
// document's field order.
func parseFields(node *yaml.Node) ([]models.Field, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fields: must be a mapping, got %s", kindName(node.Kind))
	}
	out := make([]models.Field, 0, len(node.Content)/2)
	seen := make(map[string]struct{})
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if name == "" {
			return nil, fmt.Errorf("fields: empty field name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("fields: duplicate field %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, models.Field{Name: name, Value: node.Content[i+1].Value})
	}
	return out, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
