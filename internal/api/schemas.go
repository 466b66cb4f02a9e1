package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// maxBodyBytes caps POST and websocket payloads.
const maxBodyBytes = 4 << 10

var (
	intentSchema   = mustSchema("intent.schema.json")
	purchaseSchema = mustSchema("purchase.schema.json")
	startSchema    = mustSchema("start.schema.json")
)

func mustSchema(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("api: read schema %s: %v", name, err))
	}
	url := "mem://arena/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("api: add schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// decodeValid checks raw against the schema and then decodes it into dst.
func decodeValid(schema *jsonschema.Schema, raw []byte, dst any) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// readValid reads a size-capped request body and validates it. An empty body
// is treated as an empty object.
func readValid(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if err := decodeValid(schema, raw, dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
