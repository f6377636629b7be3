package catalog

import (
	_ "embed"
	"strings"
	"sync"

	js "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopmonkeyus/tablekit/internal"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://github.com/shopmonkeyus/tablekit/catalog.json"

var (
	schemaOnce     sync.Once
	compiledSchema *js.Schema
	schemaErr      error
)

func catalogSchema() (*js.Schema, error) {
	schemaOnce.Do(func() {
		compiler := js.NewCompiler()
		compiler.Draft = js.Draft7
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks a decoded document against the catalog schema. The document must be made of
// JSON values: maps with string keys, slices, strings, float64 or json.Number, bools and nil.
func Validate(doc any) error {
	schema, err := catalogSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		if verr, ok := err.(*js.ValidationError); ok {
			return internal.ConfigErrorf("invalid catalog: %s", describe(verr))
		}
		return err
	}
	return nil
}

// describe flattens a validation error to its most specific causes.
func describe(verr *js.ValidationError) string {
	var msgs []string
	var walk func(e *js.ValidationError)
	walk = func(e *js.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(msgs, "; ")
}
