package cart

import (
	"encoding/json"
	"sort"

	"github.com/go-faster/jx"
)

// ComputeKey derives the deterministic merge key for a line:
// "TYPE:id" or "TYPE:id:metaSignature" when the meta carries any attributes.
//
// The meta signature is a canonical JSON encoding — empty fields dropped,
// object keys sorted, array elements sorted — so semantically identical
// additions collide on the same key regardless of how the meta was built.
func ComputeKey(t ItemType, id string, meta Meta) string {
	sig := Signature(meta)
	if sig == "" {
		return string(t) + ":" + id
	}
	return string(t) + ":" + id + ":" + sig
}

// Signature returns the canonical signature of meta, or "" when meta is nil
// or carries no attributes.
func Signature(meta Meta) string {
	if meta == nil {
		return ""
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ""
	}
	return canonicalSignature(generic)
}

// canonicalSignature canonicalizes an already-decoded JSON value. Exposed to
// the key tests through Signature; the attribute bag always arrives here as
// a map[string]any.
func canonicalSignature(v any) string {
	pruned, ok := prune(v)
	if !ok {
		return ""
	}
	var e jx.Encoder
	encodeCanonical(&e, pruned)
	sig := e.String()
	if sig == "{}" || sig == "[]" {
		return ""
	}
	return sig
}

// prune drops empty values: nil, "", empty arrays, empty objects, and any
// object field whose value prunes to empty.
func prune(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if p, ok := prune(elem); ok {
				out[k] = p
			}
		}
		return out, len(out) > 0
	case []any:
		out := make([]any, 0, len(val))
		for _, elem := range val {
			if p, ok := prune(elem); ok {
				out = append(out, p)
			}
		}
		return out, len(out) > 0
	default:
		// Numbers and bools always participate, including 0 and false.
		return val, true
	}
}

func encodeCanonical(e *jx.Encoder, v any) {
	switch val := v.(type) {
	case string:
		e.Str(val)
	case float64:
		e.Float64(val)
	case bool:
		e.Bool(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			encodeCanonical(e, val[k])
		}
		e.ObjEnd()
	case []any:
		// Sort elements by their canonical encoding so selection order
		// does not affect the key.
		encoded := make([]string, len(val))
		for i, elem := range val {
			var sub jx.Encoder
			encodeCanonical(&sub, elem)
			encoded[i] = sub.String()
		}
		sort.Strings(encoded)

		e.ArrStart()
		for _, enc := range encoded {
			e.Raw([]byte(enc))
		}
		e.ArrEnd()
	default:
		e.Null()
	}
}
