package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://eventengine.ai/schemas/"

// Inbound message type -> schema file.
var inboundSchemas = map[string]string{
	TypeHello:    "hello.schema.json",
	TypeSignal:   "signal.schema.json",
	TypeRegister: "command.schema.json",
	TypeUnreg:    "command.schema.json",
	TypeVote:     "command.schema.json",
	TypeStateReq: "state_req.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	ents, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(inboundSchemas))
	for typ, name := range inboundSchemas {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		out[typ] = s
	}
	return out, nil
}

// Validate checks an inbound frame against the schema of its type.
func Validate(msgType string, raw []byte) error {
	schemasOnce.Do(func() { schemas, schemasErr = compileSchemas() })
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[msgType]
	if !ok {
		return fmt.Errorf("unknown message type %q", msgType)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
