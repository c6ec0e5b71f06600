package narrative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// OutputFormat is the JSON Schema a structured reply must satisfy. It is
// compiled on first use.
type OutputFormat struct {
	Name        string
	Description string
	Schema      map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func (f *OutputFormat) compile() {
	raw, err := json.Marshal(f.Schema)
	if err != nil {
		f.err = err
		return
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		f.err = err
		return
	}
	c := jsonschema.NewCompiler()
	loc := "mem://" + f.Name + ".json"
	if f.err = c.AddResource(loc, doc); f.err != nil {
		return
	}
	f.compiled, f.err = c.Compile(loc)
}

// check validates body. A nil format accepts anything.
func (f *OutputFormat) check(body []byte) error {
	if f == nil {
		return nil
	}
	f.once.Do(f.compile)
	if f.err != nil {
		return fmt.Errorf("output format %s: %w", f.Name, f.err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return badReply(Malformed, body, fmt.Errorf("not JSON: %w", err))
	}
	if err := f.compiled.Validate(doc); err != nil {
		return badReply(Malformed, body, err)
	}
	return nil
}
