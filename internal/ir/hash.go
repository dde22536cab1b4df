package ir

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// ConfigHash returns a deterministic hash of a resource's desired
// configuration, used to detect drift needing an update. Map keys are
// sorted by the JSON encoder, so attribute order in the declaration file
// does not affect the hash.
func ConfigHash(r *Resource) string {
	canonical := struct {
		Type       ResourceType   `json:"type"`
		Attributes map[string]any `json:"attributes"`
	}{
		Type:       r.Type,
		Attributes: r.Attributes,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		// Attributes come from YAML, which only produces marshalable
		// values; fall back to the unhashable marker rather than panic.
		return fmt.Sprintf("unhashable:%v", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}
