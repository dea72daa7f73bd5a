package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// parseParams turns k=v flag values into tool parameters. Values are
// converted to the kind the descriptor declares; unknown names stay strings
// so that validation reports them.
func parseParams(desc types.ToolDescriptor, pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", pair)
		}

		spec, known := desc.Param(name)
		if !known {
			params[name] = raw
			continue
		}
		v, err := convertParam(spec.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

func convertParam(kind types.ParamKind, raw string) (any, error) {
	switch kind {
	case types.KindInteger:
		return strconv.ParseInt(raw, 10, 64)
	case types.KindNumber:
		return strconv.ParseFloat(raw, 64)
	case types.KindBoolean:
		return strconv.ParseBool(raw)
	case types.KindArray:
		var v []any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	case types.KindObject:
		var v map[string]any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return raw, nil
	}
}

// chainFile is the on-disk form of a chain. A bare list of steps is also
// accepted.
type chainFile struct {
	Steps []types.ToolInvocation `json:"steps" yaml:"steps"`
}

// loadChainFile reads steps from a YAML or JSON file.
func loadChainFile(path string) ([]types.ToolInvocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file chainFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			var steps []types.ToolInvocation
			if json.Unmarshal(data, &steps) != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			file.Steps = steps
		}
	default:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err = node.Decode(&file.Steps)
		} else {
			err = node.Decode(&file)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("%s contains no steps", path)
	}
	for i, step := range file.Steps {
		if step.Tool == "" {
			return nil, fmt.Errorf("step %d: tool is required", i+1)
		}
	}
	return file.Steps, nil
}
