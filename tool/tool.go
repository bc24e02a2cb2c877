// Package tool turns plain Go functions into tool definitions that a model
// can call. A definition carries the function value itself plus the name,
// description and parameter names that are advertised to the model; the JSON
// schema for the parameters is derived from the function signature through
// reflection.
package tool

import (
	"fmt"
	"reflect"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/jkmaina/autogen-blueprint/pkg/reflectx"
	"github.com/jkmaina/autogen-blueprint/pkg/stdx"
	"github.com/jkmaina/autogen-blueprint/types"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a callable tool: the Go function, the name and
// description shown to the model, and an optional mapping from positional
// parameter slots to friendly parameter names.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema returns the advertised function name together with the
// JSON schema of its parameters.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, td)
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	val := reflect.ValueOf(f.Function)
	typ := val.Type()

	name := f.Name
	if name == "" && typ.Kind() == reflect.Func {
		name = reflectx.FunctionName(f.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	if typ.Kind() == reflect.Func {
		numIn := typ.NumIn()
		startIdx := 0
		// skip the receiver for methods
		if numIn > 0 && typ.In(0).Kind() == reflect.Struct {
			startIdx = 1
		}

		var required []string
		slot := 0
		for i := startIdx; i < numIn; i++ {
			paramType := typ.In(i)
			// context vars are injected by the run loop, the model never
			// sees them and they do not consume a parameter slot
			if reflectx.IsRefinedType[types.ContextVars](paramType) {
				continue
			}

			paramName := fmt.Sprintf("param%d", slot)
			slot++
			if f.Parameters != nil {
				if p, ok := f.Parameters[paramName]; ok {
					paramName = p
				}
			}

			propSchema := reflector.ReflectFromType(paramType)
			propSchema.Version = ""
			schema.Properties.Set(paramName, propSchema)
			required = append(required, paramName)
		}
		if len(required) > 0 {
			schema.Required = required
		}
	}

	return name, schema
}

// Option configures a Definition during construction.
type Option = opts.Option[Definition]

// Must is New but panics on error. Useful for package-level tool variables.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New builds a Definition from the provided function. When no Name option is
// given the function's own name is used.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Name overrides the tool name advertised to the model.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the tool description advertised to the model.
var Description = opts.ForName[Definition, string]("Description")

// Parameters assigns friendly names to the function's positional parameters,
// in declaration order.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
