package normalize

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// Submission normalizes a submitted record (for example a form response) into
// the row shape an exported table would carry: top-level strings and the
// values of each connection record are normalized, and a connections list is
// re-encoded as a JSON string so the row can go through Normalize like any
// CSV row. A payload without an identity fails with types.ErrMissingIdentity.
func (n *Normalizer) Submission(payload map[string]any) (types.RawRow, error) {
	values := make(map[string]any, len(payload))
	for key, value := range payload {
		if !strings.EqualFold(key, n.ConnectionsColumn) {
			values[key] = NormalizeValue(value)
			continue
		}

		conns, ok := value.([]any)
		if !ok {
			values[key] = value
			continue
		}
		cleaned := make([]any, 0, len(conns))
		for _, conn := range conns {
			record, ok := conn.(map[string]any)
			if !ok {
				cleaned = append(cleaned, conn)
				continue
			}
			normalized := make(map[string]any, len(record))
			for ck, cv := range record {
				normalized[ck] = NormalizeValue(cv)
			}
			cleaned = append(cleaned, normalized)
		}
		encoded, err := json.Marshal(cleaned)
		if err != nil {
			return types.RawRow{}, err
		}
		values[key] = string(encoded)
	}

	row := types.RawRow{Values: values}
	if identity, _ := row.Get(n.IdentityColumn); types.FormatValue(identity) == "" {
		return types.RawRow{}, fmt.Errorf("%w: submission has an empty %q field",
			types.ErrMissingIdentity, n.IdentityColumn)
	}
	return row, nil
}

func sortedRecordKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
