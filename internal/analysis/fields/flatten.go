// Package fields infers a flat schema from sample JSON log records.
package fields

import "sort"

const maxSampleValues = 3

// Info describes one discovered field path.
type Info struct {
	Type         string `json:"type"`
	SampleValues []any  `json:"sampleValues"`
	IsNested     bool   `json:"isNested"`
}

// Flatten walks every record and returns a mapping from dot-joined field path
// to its observed shape. The type is that of the first occurrence; sample
// values are scalars only, capped at three, in record order. A path is nested
// when any occurrence held an object. The resulting set of paths does not
// depend on the order records are supplied in.
func Flatten(records []map[string]any) map[string]Info {
	out := make(map[string]Info)
	for _, record := range records {
		walkObject("", record, out)
	}
	return out
}

// Paths returns the discovered paths in sorted order, for stable output.
func Paths(fields map[string]Info) []string {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func walkObject(prefix string, obj map[string]any, out map[string]Info) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		observe(path, value, out)
		if child, ok := value.(map[string]any); ok {
			walkObject(path, child, out)
		}
	}
}

func observe(path string, value any, out map[string]Info) {
	info, seen := out[path]
	if !seen {
		info = Info{Type: typeName(value), SampleValues: []any{}}
	}
	switch value.(type) {
	case map[string]any:
		info.IsNested = true
	case []any, nil:
		// arrays and nulls contribute type only, no sample values
	default:
		if len(info.SampleValues) < maxSampleValues {
			info.SampleValues = append(info.SampleValues, value)
		}
	}
	out[path] = info
}

// typeName mirrors JSON value categories as they arrive from encoding/json.
func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
