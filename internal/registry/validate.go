package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry checks every plugin's argument struct and derives its
// input definitions. Every exported field must carry a `arg` tag and map to
// a cty type; `arg:"name,optional"` marks an argument that may be omitted.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for name, eq := range r.equations {
		if eq.New == nil {
			errs = append(errs, fmt.Sprintf("equation '%s': no constructor", name))
			continue
		}
		inputs, problems := inputsOf("equation", name, eq.NewArgs)
		errs = append(errs, problems...)
		eq.inputs = inputs
		logger.Debug("Equation validated.", "equation", name, "inputs", len(inputs))
	}
	for name, ic := range r.initials {
		if ic.New == nil {
			errs = append(errs, fmt.Sprintf("initial condition '%s': no constructor", name))
			continue
		}
		inputs, problems := inputsOf("initial condition", name, ic.NewArgs)
		errs = append(errs, problems...)
		ic.inputs = inputs
		logger.Debug("Initial condition validated.", "initial", name, "inputs", len(inputs))
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func inputsOf(kind, name string, newArgs func() any) (map[string]*config.InputDefinition, []string) {
	inputs := make(map[string]*config.InputDefinition)
	if newArgs == nil {
		return inputs, nil
	}
	ptr := reflect.ValueOf(newArgs())
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		return nil, []string{fmt.Sprintf("%s '%s': NewArgs must return a pointer to a struct, got %s", kind, name, ptr.Kind())}
	}

	var errs []string
	argsType := ptr.Elem().Type()
	for i := 0; i < argsType.NumField(); i++ {
		field := argsType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("arg")
		parts := strings.Split(tag, ",")
		if parts[0] == "" {
			errs = append(errs, fmt.Sprintf("%s '%s': field '%s' has no arg tag", kind, name, field.Name))
			continue
		}
		if parts[0] == "-" {
			continue
		}
		ty, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s '%s', input '%s': could not imply cty type from Go field type %s: %v", kind, name, parts[0], field.Type, err))
			continue
		}
		inputs[parts[0]] = &config.InputDefinition{
			Name:     parts[0],
			Type:     ty,
			Optional: len(parts) > 1 && parts[1] == "optional",
		}
	}
	return inputs, errs
}
