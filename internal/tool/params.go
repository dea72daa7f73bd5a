package tool

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// ValidateAgainst checks params against the descriptor's parameter specs.
// Required parameters must be present and non-null; every present parameter
// must have the declared kind. Unknown parameters are ignored.
func ValidateAgainst(desc types.ToolDescriptor, params map[string]any) error {
	for _, spec := range desc.Parameters {
		v, ok := params[spec.Name]
		if !ok || v == nil {
			if spec.Required {
				return types.NewError(types.KindInvalidParameters, "missing required parameter %q", spec.Name)
			}
			continue
		}
		if !hasKind(v, spec.Kind) {
			return types.NewError(types.KindInvalidParameters, "parameter %q must be %s, got %s", spec.Name, spec.Kind, kindName(v))
		}
	}
	return nil
}

func hasKind(v any, kind types.ParamKind) bool {
	switch kind {
	case types.KindString:
		_, ok := v.(string)
		return ok
	case types.KindInteger:
		_, ok := asInt(v)
		return ok
	case types.KindNumber:
		_, ok := asFloat(v)
		return ok
	case types.KindBoolean:
		_, ok := v.(bool)
		return ok
	case types.KindArray:
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		}
		return false
	case types.KindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// asInt accepts Go integers and integral JSON numbers.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func kindName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string, []map[string]any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := asInt(v); ok {
		return "integer"
	}
	if _, ok := asFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// decodeParams converts validated params into a typed input struct.
func decodeParams(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return types.WrapError(types.KindInvalidParameters, err, "parameters are not serializable")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return types.WrapError(types.KindInvalidParameters, err, "parameters do not match the schema")
	}
	return nil
}

// stringParam returns params[name] when it is a string.
func stringParam(params map[string]any, name string) string {
	s, _ := params[name].(string)
	return s
}
