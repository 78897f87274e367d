package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ContextSignature computes a deterministic hash of a context map. The same
// keys and values always produce the same signature regardless of insertion
// order, which makes it usable as the primary key for pattern matching.
func ContextSignature(ctx map[string]any) string {
	sum := sha256.Sum256([]byte(canonicalMap(ctx)))
	return hex.EncodeToString(sum[:16])
}

// PatternID derives the stable primary key for a pattern from its type and
// context signature.
func PatternID(patternType, signature string) string {
	sum := sha256.Sum256([]byte(patternType + "\x00" + signature))
	return hex.EncodeToString(sum[:16])
}

// EntryID derives the stable primary key for a knowledge entry from its type
// and subject.
func EntryID(knowledgeType, subject string) string {
	sum := sha256.Sum256([]byte(knowledgeType + "\x00" + subject))
	return hex.EncodeToString(sum[:16])
}

// canonicalMap renders a map as "k=v;" pairs in sorted key order so the
// encoding is insertion-order independent.
func canonicalMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(canonicalValue(m[k]))
		b.WriteByte(';')
	}
	return b.String()
}

// canonicalValue renders a single value deterministically, recursing into
// nested maps and lists. Numeric values are routed through NormalizeValue so
// the same quantity hashes identically regardless of its arriving width.
func canonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return fmt.Sprintf("%t", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case int, int32, int64, uint, float32:
		if norm, err := NormalizeValue(val); err == nil {
			return canonicalValue(norm)
		}
		return fmt.Sprintf("%v", val)
	case map[string]any:
		return "{" + canonicalMap(val) + "}"
	case []any:
		parts := make([]string, len(val))
		for i, inner := range val {
			parts[i] = canonicalValue(inner)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ContextTokens flattens a context map into lowercase tokens for overlap
// scoring. Both keys and scalar values contribute tokens.
func ContextTokens(ctx map[string]any) []string {
	tokens := make([]string, 0, len(ctx)*2)
	for k, v := range ctx {
		tokens = append(tokens, strings.ToLower(k))
		switch val := v.(type) {
		case string:
			for _, part := range strings.Fields(strings.ToLower(val)) {
				tokens = append(tokens, part)
			}
		case map[string]any:
			tokens = append(tokens, ContextTokens(val)...)
		default:
			tokens = append(tokens, strings.ToLower(canonicalValue(v)))
		}
	}
	return tokens
}
