package main

import (
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a refinement request",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(requestSchema())
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

// requestSchema reflects orchestrator.Request, rendering regression.Method as
// its string enum.
func requestSchema() *jsonschema.Schema {
	methodType := reflect.TypeOf(regression.Method(0))
	r := &jsonschema.Reflector{
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t != methodType {
				return nil
			}
			enum := make([]any, 0, len(regression.Methods))
			for _, m := range regression.Methods {
				enum = append(enum, m.String())
			}
			return &jsonschema.Schema{Type: "string", Enum: enum, Default: orchestrator.DefaultMethod.String()}
		},
	}
	return r.Reflect(&orchestrator.Request{})
}
