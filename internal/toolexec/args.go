package toolexec

import (
	"encoding/json"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// decodeArgs unmarshals a tool call's raw argument JSON into a generic map,
// the shape every handler validates its own fields out of. A non-object
// payload or malformed JSON is an invalid_argument failure, never internal.
func decodeArgs(argsJSON json.RawMessage) (map[string]interface{}, error) {
	if len(argsJSON) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(argsJSON, &m); err != nil {
		return nil, errs.Newf(errs.InvalidArgument, "arguments must be a JSON object: %v", err)
	}
	return m, nil
}

func requireString(m map[string]interface{}, field string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", errs.Newf(errs.InvalidArgument, "Missing mandatory field: %s", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.Newf(errs.InvalidArgument, "%s must be a string", field)
	}
	return s, nil
}

func optionalString(m map[string]interface{}, field, def string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.Newf(errs.InvalidArgument, "%s must be a string", field)
	}
	return s, nil
}

func optionalInt(m map[string]interface{}, field string, def int) (int, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errs.Newf(errs.InvalidArgument, "%s must be an integer", field)
	}
	return int(f), nil
}

// optionalIntPtr distinguishes "absent" from "present", for fields whose
// zero value is meaningful (e.g. start_line=0 vs not supplied).
func optionalIntPtr(m map[string]interface{}, field string) (*int, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "%s must be an integer", field)
	}
	i := int(f)
	return &i, nil
}

func requireInt(m map[string]interface{}, field string) (int, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return 0, errs.Newf(errs.InvalidArgument, "Missing mandatory field: %s", field)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errs.Newf(errs.InvalidArgument, "%s must be an integer", field)
	}
	return int(f), nil
}

func optionalBool(m map[string]interface{}, field string, def bool) (bool, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, errs.Newf(errs.InvalidArgument, "%s must be a boolean", field)
	}
	return b, nil
}

func requireStringArray(m map[string]interface{}, field string) ([]string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, errs.Newf(errs.InvalidArgument, "Missing mandatory field: %s", field)
	}
	return asStringArray(v, field)
}

func optionalStringArray(m map[string]interface{}, field string) ([]string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, nil
	}
	return asStringArray(v, field)
}

func asStringArray(v interface{}, field string) ([]string, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "%s must be an array of strings", field)
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, errs.Newf(errs.InvalidArgument, "%s must be an array of strings", field)
		}
		out[i] = s
	}
	return out, nil
}

func requireObjectArray(m map[string]interface{}, field string) ([]map[string]interface{}, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, errs.Newf(errs.InvalidArgument, "Missing mandatory field: %s", field)
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "%s must be an array", field)
	}
	out := make([]map[string]interface{}, len(arr))
	for i, e := range arr {
		obj, ok := e.(map[string]interface{})
		if !ok {
			return nil, errs.Newf(errs.InvalidArgument, "%s[%d] must be an object", field, i)
		}
		out[i] = obj
	}
	return out, nil
}
