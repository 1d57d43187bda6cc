package collection

import (
	"fmt"
	"strings"

	"github.com/starford/dagaz/internal/apperr"
)

// ResolveFilter resolves a filter expression to the ordered list of matching
// note ids (ascending id, the collection's native order).
//
// The expression is a space-separated list of terms, all of which must
// match (AND). Supported terms:
//
//	deck:Name          exact deck match
//	tag:name           note carries the tag
//	field:Name=Value   note has field Name with exactly Value
//	word               substring match anywhere in the note's field data
//
// An empty expression is apperr.ErrEmptyFilter; a term with an unknown
// prefix or a malformed term is apperr.ErrBadFilter. Resolution performs
// no writes regardless of outcome.
func (db *DB) ResolveFilter(expr string) ([]int64, error) {
	where, args, err := buildFilter(expr)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT id FROM notes WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("collection: resolve filter: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func buildFilter(expr string) (string, []any, error) {
	terms := strings.Fields(expr)
	if len(terms) == 0 {
		return "", nil, apperr.ErrEmptyFilter
	}

	var conds []string
	var args []any
	for _, term := range terms {
		cond, arg, err := buildTerm(term)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, arg)
	}
	return strings.Join(conds, " AND "), args, nil
}

func buildTerm(term string) (string, any, error) {
	prefix, rest, hasPrefix := strings.Cut(term, ":")
	if !hasPrefix {
		// Bare word: substring search over the serialized field data.
		return "fields LIKE ?", "%" + term + "%", nil
	}

	switch prefix {
	case "deck":
		if rest == "" {
			return "", nil, fmt.Errorf("%w: empty deck name in %q", apperr.ErrBadFilter, term)
		}
		return "deck = ?", rest, nil

	case "tag":
		if rest == "" {
			return "", nil, fmt.Errorf("%w: empty tag name in %q", apperr.ErrBadFilter, term)
		}
		return "tags LIKE ?", `%"` + rest + `"%`, nil

	case "field":
		name, value, ok := strings.Cut(rest, "=")
		if !ok || name == "" {
			return "", nil, fmt.Errorf("%w: expected field:Name=Value, got %q", apperr.ErrBadFilter, term)
		}
		// Fields are stored as JSON objects in declared key order, so an
		// exact name/value pair has a stable textual shape to match on.
		pattern := fmt.Sprintf(`%%"name":%s,"value":%s%%`, jsonString(name), jsonString(value))
		return "fields LIKE ?", pattern, nil

	default:
		return "", nil, fmt.Errorf("%w: unknown term prefix %q in %q", apperr.ErrBadFilter, prefix, term)
	}
}

// jsonString renders s the way encoding/json does, so LIKE patterns line up
// with the stored representation.
func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
