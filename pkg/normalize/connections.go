package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

var (
	targetKeys   = []string{"target", "to", "name", "id"}
	relationKeys = []string{"type", "relation", "relationship", "relation_type"}
)

// DecodeConnections decodes a connections cell into references. The value may
// be a JSON (or JSON-like) string, an already decoded list, or a single record.
// Blank values decode to no connections.
func DecodeConnections(value any) ([]types.ConnectionRef, error) {
	var decoded any
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		var err error
		if decoded, err = decodeJSON(s); err != nil {
			return nil, err
		}
	default:
		decoded = v
	}

	var items []any
	switch v := decoded.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("connections must be a list of records, got %T", decoded)
	}

	refs := make([]types.ConnectionRef, 0, len(items))
	for i, item := range items {
		ref, err := decodeConnection(item)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i+1, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// decodeJSON parses s, repairing single quotes, trailing commas and similar
// spreadsheet-mangled JSON first.
func decodeJSON(s string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, fmt.Errorf("connections are not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("connections are not valid JSON: %w", err)
	}
	return out, nil
}

func decodeConnection(item any) (types.ConnectionRef, error) {
	ref := types.ConnectionRef{Extra: types.NewAttributes()}

	switch v := item.(type) {
	case string, float64, json.Number:
		ref.TargetIdentity = types.FormatValue(NormalizeValue(v))
	case map[string]any:
		targetKey, relationKey := pickKey(v, targetKeys), pickKey(v, relationKeys)
		if targetKey != "" {
			ref.TargetIdentity = types.FormatValue(NormalizeValue(v[targetKey]))
		}
		if relationKey != "" {
			ref.RelationType = types.FormatValue(NormalizeValue(v[relationKey]))
		}
		for _, key := range sortedRecordKeys(v) {
			if key == targetKey || key == relationKey {
				continue
			}
			if s := types.FormatValue(NormalizeValue(v[key])); s != "" {
				ref.Extra.Set(key, s)
			}
		}
	default:
		return ref, fmt.Errorf("unexpected %T entry", item)
	}

	if ref.TargetIdentity == "" {
		return ref, errors.New("missing target")
	}
	return ref, nil
}

// pickKey returns the record key matching one of candidates, in candidate
// order. An exact match wins; otherwise keys are compared case-insensitively
// in sorted order, so case-variant duplicates always resolve the same way.
func pickKey(record map[string]any, candidates []string) string {
	keys := sortedRecordKeys(record)
	for _, candidate := range candidates {
		if _, ok := record[candidate]; ok {
			return candidate
		}
		for _, key := range keys {
			if strings.EqualFold(strings.TrimSpace(key), candidate) {
				return key
			}
		}
	}
	return ""
}
