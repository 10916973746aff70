package plan

import "encoding/json"

// MigrateGateResult upgrades a raw gate-result document from legacy field
// names (result -> status, duration -> duration_ms, start_time ->
// started_at) before it is decoded into GateResult. Documents already on
// the current schema pass through unchanged.
func MigrateGateResult(raw map[string]any) map[string]any {
	migrated := make(map[string]any, len(raw))
	for k, v := range raw {
		migrated[k] = v
	}

	if _, hasStatus := migrated["status"]; !hasStatus {
		if result, ok := migrated["result"]; ok {
			migrated["status"] = result
			delete(migrated, "result")
		}
	}
	if _, hasDurationMS := migrated["duration_ms"]; !hasDurationMS {
		if duration, ok := migrated["duration"]; ok {
			migrated["duration_ms"] = duration
			delete(migrated, "duration")
		}
	}
	if _, hasStartedAt := migrated["started_at"]; !hasStartedAt {
		if startTime, ok := migrated["start_time"]; ok {
			migrated["started_at"] = startTime
			delete(migrated, "start_time")
		}
	}

	return migrated
}

// DecodeGateResult parses raw bytes as a (possibly legacy-shaped) gate
// result document, migrating it to the current schema first.
func DecodeGateResult(data []byte) (*GateResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidJSONError{Cause: err}
	}
	raw = MigrateGateResult(raw)

	migratedBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var result GateResult
	if err := json.Unmarshal(migratedBytes, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
