package mcpserver

// DeckFormatContract describes the canonical deck file format that
// LLM consumers should follow when authoring decks.
const DeckFormatContract = `# Dagaz Deck Format Contract

Every deck file stored in Dagaz MUST follow this structure.

## Structure

` + "```" + `yaml
deck: Spanish Vocabulary        # OPTIONAL – defaults to the file name stem
notes:
  - fields:                     # REQUIRED – ordered name/value pairs
      Front: hola
      Back: hello
    tags:                       # OPTIONAL – YAML list; used for filtering
      - greetings
    cards: 2                    # OPTIONAL – card count, defaults to 1
` + "```" + `

## Rules

1. **Field order matters.** Fields are compared positionally when combining
   keys, so keep the same field layout across notes of one deck.
2. **Field names must be unique** within a note and non-empty.
3. **Every note needs at least one field.**
4. **` + "`" + `cards` + "`" + ` may be 0** for a note that generates no cards; such notes are
   ignored by duplicate detection. Negative counts are rejected.
5. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `duplicate-card` + "`" + `, ` + "`" + `verb-forms` + "`" + `).
6. **File paths** end with ` + "`" + `.yaml` + "`" + ` or ` + "`" + `.yml` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8.

## Filters

Dedup runs select notes with a space-separated filter; all terms must match:

- ` + "`" + `deck:Spanish` + "`" + ` – notes of that deck
- ` + "`" + `tag:greetings` + "`" + ` – notes carrying the tag
- ` + "`" + `field:Front=hola` + "`" + ` – exact field value
- bare words match anywhere in the field values

## Example

` + "```" + `yaml
deck: Spanish
notes:
  - fields:
      Front: hola
      Back: hello
    tags: [greetings]
  - fields:
      Front: adios
      Back: goodbye
    cards: 2
` + "```" + `
`
