// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"leak-audit/internal/common/validation"
)

//go:embed activities.json
var defaultActivities []byte

var (
	defaultOnce sync.Once
	defaultReg  *ActivityRegistry
)

// Default returns the embedded registry. It panics if the embedded file is
// malformed, which the package tests rule out.
func Default() *ActivityRegistry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultActivities)
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	seen := make(map[string]bool, len(reg.Activities))
	for _, a := range reg.Activities {
		if a.TaskType == "" {
			return nil, fmt.Errorf("activity %q has no taskType", a.ID)
		}
		if seen[a.TaskType] {
			return nil, fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return &reg, nil
}

func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// InputSchema compiles the input schema of taskType. It returns nil when the
// activity declares none.
func (r *ActivityRegistry) InputSchema(taskType string) (*validation.Schema, error) {
	a, ok := r.Lookup(taskType)
	if !ok {
		return nil, fmt.Errorf("unknown taskType %q", taskType)
	}
	if len(a.InputSchema) == 0 {
		return nil, nil
	}
	doc, err := json.Marshal(a.InputSchema)
	if err != nil {
		return nil, err
	}
	return validation.Compile(taskType, string(doc))
}
