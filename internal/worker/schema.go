package worker

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

//go:embed schemas/*.schema.json
var schemaFiles embed.FS

// PayloadValidator checks job payloads against the schema of their type.
type PayloadValidator struct {
	schemas map[models.JobType]*jsonschema.Schema
}

// NewPayloadValidator compiles the embedded schema of every job type.
func NewPayloadValidator() (*PayloadValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true

	schemas := make(map[models.JobType]*jsonschema.Schema, len(models.JobTypes))
	for _, jobType := range models.JobTypes {
		name := schemaFileName(jobType)
		raw, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}

		url := "mem://schemas/" + name
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		schemas[jobType] = schema
	}

	return &PayloadValidator{schemas: schemas}, nil
}

// Validate reports why job's payload does not match its type, if it does not.
func (v *PayloadValidator) Validate(job models.NotificationJob) error {
	schema, ok := v.schemas[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	var document interface{}
	if err := json.Unmarshal(job.Payload, &document); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Type, err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("invalid %s payload: %w", job.Type, err)
	}
	return nil
}

func schemaFileName(jobType models.JobType) string {
	return strings.ToLower(string(jobType)) + ".schema.json"
}
