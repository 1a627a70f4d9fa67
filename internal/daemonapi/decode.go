package daemonapi

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"gemstone-testapp/internal/model"
)

const statsKey = "system_stats"

// decodeSystem decodes the system payload one field at a time when a whole
// decode fails, so a single bad value only costs that value. It returns the
// names of the fields that were dropped.
func decodeSystem(data []byte) (*model.SystemPayload, []string, error) {
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, nil, fmt.Errorf("decode data: %w", err)
	}

	rawStats, hasStats := fields[statsKey]
	delete(fields, statsKey)

	var p model.SystemPayload
	dropped := decodeFields(fields, &p)

	if hasStats && !isNull(rawStats) {
		var statsFields map[string]jsoniter.RawMessage
		if err := json.Unmarshal(rawStats, &statsFields); err != nil {
			dropped = append(dropped, statsKey)
		} else {
			var s model.SystemStats
			for _, name := range decodeFields(statsFields, &s) {
				dropped = append(dropped, statsKey+"."+name)
			}
			p.SystemStats = &s
		}
	}

	sort.Strings(dropped)
	return &p, dropped, nil
}

// decodeFields applies each field to out only if it decodes cleanly on its own.
func decodeFields[T any](fields map[string]jsoniter.RawMessage, out *T) []string {
	var dropped []string
	for name, raw := range fields {
		single, err := json.Marshal(map[string]jsoniter.RawMessage{name: raw})
		if err != nil {
			dropped = append(dropped, name)
			continue
		}
		var scratch T
		if err := json.Unmarshal(single, &scratch); err != nil {
			dropped = append(dropped, name)
			continue
		}
		_ = json.Unmarshal(single, out)
	}
	return dropped
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}
