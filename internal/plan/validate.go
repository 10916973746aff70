package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// Issue describes one schema validation problem.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// SchemaValidationError reports every issue found while validating a raw
// plan document — never just the first.
type SchemaValidationError struct {
	Issues []Issue
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("plan schema validation failed with %d issue(s): %s", len(e.Issues), e.Issues[0].Message)
}

// InvalidJSONError wraps a JSON syntax/structure error so callers can
// distinguish "not JSON at all" from "valid JSON, invalid plan".
type InvalidJSONError struct {
	Cause error
}

func (e *InvalidJSONError) Error() string { return fmt.Sprintf("invalid JSON: %v", e.Cause) }
func (e *InvalidJSONError) Unwrap() error { return e.Cause }

var schemaVersionPattern = regexp.MustCompile(`^1\.\d+\.\d+$`)

var topLevelFields = map[string]bool{
	"schemaVersion": true, "target": true, "items": true, "policy": true,
}

var itemFields = map[string]bool{
	"name": true, "deps": true, "gates": true, "branch": true, "sha": true, "strategy": true,
}

var gateFields = map[string]bool{
	"name": true, "run": true, "runtime": true, "env": true, "cwd": true,
	"artifacts": true, "timeoutSec": true, "retries": true,
}

var policyFields = map[string]bool{
	"requiredGates": true, "optionalGates": true, "maxWorkers": true,
	"retries": true, "overrides": true, "blockOn": true, "mergeRule": true,
}

var validStrategies = map[string]bool{
	StrategyRebaseWeave: true, StrategyMergeWeave: true, StrategySquashWeave: true,
}

var validMergeRules = map[string]bool{
	MergeRuleStrictRequired: true,
}

// LoadPlan parses text as a Plan document: JSON syntax errors are reported
// as *InvalidJSONError, schema problems as *SchemaValidationError.
func LoadPlan(text []byte) (*Plan, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &InvalidJSONError{Cause: err}
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var p Plan
	if err := json.Unmarshal(text, &p); err != nil {
		return nil, &InvalidJSONError{Cause: err}
	}
	return &p, nil
}

// Validate checks a raw, generically-decoded plan document against the
// schema and collects every issue found.
func Validate(raw map[string]any) error {
	var issues []Issue

	for key := range raw {
		if !topLevelFields[key] {
			issues = append(issues, Issue{Path: key, Message: fmt.Sprintf("unknown field %q", key), Code: "unknown_field"})
		}
	}

	sv, ok := raw["schemaVersion"]
	if !ok {
		issues = append(issues, Issue{Path: "schemaVersion", Message: "schemaVersion is required", Code: "required"})
	} else if svStr, ok := sv.(string); !ok {
		issues = append(issues, Issue{Path: "schemaVersion", Message: "schemaVersion must be a string", Code: "wrong_type"})
	} else if !schemaVersionPattern.MatchString(svStr) {
		issues = append(issues, Issue{Path: "schemaVersion", Message: fmt.Sprintf("schemaVersion %q must match 1.x.y", svStr), Code: "invalid_schema_version"})
	}

	target, ok := raw["target"]
	if !ok {
		issues = append(issues, Issue{Path: "target", Message: "target is required", Code: "required"})
	} else if targetStr, ok := target.(string); !ok {
		issues = append(issues, Issue{Path: "target", Message: "target must be a string", Code: "wrong_type"})
	} else if targetStr == "" {
		issues = append(issues, Issue{Path: "target", Message: "target must not be empty", Code: "out_of_range"})
	}

	seenNames := make(map[string]bool)
	if rawItems, ok := raw["items"]; ok {
		items, ok := rawItems.([]any)
		if !ok {
			issues = append(issues, Issue{Path: "items", Message: "items must be an array", Code: "wrong_type"})
		} else {
			for i, rawItem := range items {
				path := fmt.Sprintf("items[%d]", i)
				issues = append(issues, validateItem(path, rawItem, seenNames)...)
			}
		}
	}

	if rawPolicy, ok := raw["policy"]; ok && rawPolicy != nil {
		policyMap, ok := rawPolicy.(map[string]any)
		if !ok {
			issues = append(issues, Issue{Path: "policy", Message: "policy must be an object", Code: "wrong_type"})
		} else {
			issues = append(issues, validatePolicy("policy", policyMap)...)
		}
	}

	if len(issues) > 0 {
		sort.Slice(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
		return &SchemaValidationError{Issues: issues}
	}
	return nil
}

func validateItem(path string, rawItem any, seenNames map[string]bool) []Issue {
	var issues []Issue
	item, ok := rawItem.(map[string]any)
	if !ok {
		return []Issue{{Path: path, Message: "item must be an object", Code: "wrong_type"}}
	}

	for key := range item {
		if !itemFields[key] {
			issues = append(issues, Issue{Path: path + "." + key, Message: fmt.Sprintf("unknown field %q", key), Code: "unknown_field"})
		}
	}

	name, ok := item["name"]
	if !ok {
		issues = append(issues, Issue{Path: path + ".name", Message: "name is required", Code: "required"})
	} else if nameStr, ok := name.(string); !ok {
		issues = append(issues, Issue{Path: path + ".name", Message: "name must be a string", Code: "wrong_type"})
	} else if nameStr == "" {
		issues = append(issues, Issue{Path: path + ".name", Message: "name must not be empty", Code: "out_of_range"})
	} else if seenNames[nameStr] {
		issues = append(issues, Issue{Path: path + ".name", Message: fmt.Sprintf("duplicate item name %q", nameStr), Code: "duplicate"})
	} else {
		seenNames[nameStr] = true
	}

	if deps, ok := item["deps"]; ok {
		if _, ok := deps.([]any); !ok {
			issues = append(issues, Issue{Path: path + ".deps", Message: "deps must be an array of strings", Code: "wrong_type"})
		}
	}

	if strategy, ok := item["strategy"]; ok {
		if strategyStr, ok := strategy.(string); !ok {
			issues = append(issues, Issue{Path: path + ".strategy", Message: "strategy must be a string", Code: "wrong_type"})
		} else if !validStrategies[strategyStr] {
			issues = append(issues, Issue{Path: path + ".strategy", Message: fmt.Sprintf("unsupported strategy %q", strategyStr), Code: "out_of_range"})
		}
	}

	if rawGates, ok := item["gates"]; ok {
		gates, ok := rawGates.([]any)
		if !ok {
			issues = append(issues, Issue{Path: path + ".gates", Message: "gates must be an array", Code: "wrong_type"})
		} else {
			seenGates := make(map[string]bool)
			for i, rawGate := range gates {
				gatePath := fmt.Sprintf("%s.gates[%d]", path, i)
				issues = append(issues, validateGate(gatePath, rawGate, seenGates)...)
			}
		}
	}

	return issues
}

func validateGate(path string, rawGate any, seenGates map[string]bool) []Issue {
	var issues []Issue
	gate, ok := rawGate.(map[string]any)
	if !ok {
		return []Issue{{Path: path, Message: "gate must be an object", Code: "wrong_type"}}
	}

	for key := range gate {
		if !gateFields[key] {
			issues = append(issues, Issue{Path: path + "." + key, Message: fmt.Sprintf("unknown field %q", key), Code: "unknown_field"})
		}
	}

	name, ok := gate["name"]
	if !ok {
		issues = append(issues, Issue{Path: path + ".name", Message: "name is required", Code: "required"})
	} else if nameStr, ok := name.(string); !ok {
		issues = append(issues, Issue{Path: path + ".name", Message: "name must be a string", Code: "wrong_type"})
	} else if seenGates[nameStr] {
		issues = append(issues, Issue{Path: path + ".name", Message: fmt.Sprintf("duplicate gate name %q", nameStr), Code: "duplicate"})
	} else {
		seenGates[nameStr] = true
	}

	if _, ok := gate["run"]; !ok {
		issues = append(issues, Issue{Path: path + ".run", Message: "run is required", Code: "required"})
	} else if _, ok := gate["run"].(string); !ok {
		issues = append(issues, Issue{Path: path + ".run", Message: "run must be a string", Code: "wrong_type"})
	}

	if timeout, ok := gate["timeoutSec"]; ok {
		if !isNonNegativeNumber(timeout) {
			issues = append(issues, Issue{Path: path + ".timeoutSec", Message: "timeoutSec must be a non-negative number", Code: "out_of_range"})
		}
	}

	if retries, ok := gate["retries"]; ok {
		if !isNonNegativeNumber(retries) {
			issues = append(issues, Issue{Path: path + ".retries", Message: "retries must be a non-negative number", Code: "out_of_range"})
		}
	}

	return issues
}

func validatePolicy(path string, policy map[string]any) []Issue {
	var issues []Issue

	for key := range policy {
		if !policyFields[key] {
			issues = append(issues, Issue{Path: path + "." + key, Message: fmt.Sprintf("unknown field %q", key), Code: "unknown_field"})
		}
	}

	if maxWorkers, ok := policy["maxWorkers"]; ok {
		if !isNonNegativeNumber(maxWorkers) {
			issues = append(issues, Issue{Path: path + ".maxWorkers", Message: "maxWorkers must be a non-negative number", Code: "out_of_range"})
		}
	}

	if mergeRule, ok := policy["mergeRule"]; ok {
		if mergeRuleStr, ok := mergeRule.(string); !ok {
			issues = append(issues, Issue{Path: path + ".mergeRule", Message: "mergeRule must be a string", Code: "wrong_type"})
		} else if !validMergeRules[mergeRuleStr] {
			issues = append(issues, Issue{Path: path + ".mergeRule", Message: fmt.Sprintf("unsupported mergeRule %q", mergeRuleStr), Code: "out_of_range"})
		}
	}

	return issues
}

func isNonNegativeNumber(v any) bool {
	num, ok := v.(json.Number)
	if !ok {
		return false
	}
	f, err := num.Float64()
	if err != nil {
		return false
	}
	return f >= 0
}
