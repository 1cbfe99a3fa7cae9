package pipeline

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// BlockedError reports that a visual phase cannot start because its
// inputs are missing. It is a gate outcome, not a phase failure: the
// phase is skipped rather than retried.
type BlockedError struct {
	Reason string
}

// Error implements error.
func (e *BlockedError) Error() string {
	return "BLOCKED: " + e.Reason
}

// validateVisualInputs gates the visual assessment phases: the image
// folder must exist and hold at least one image, and the record must
// carry the context fields the assessor prompts depend on.
func (o *Orchestrator) validateVisualInputs(address, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &BlockedError{Reason: fmt.Sprintf("image folder %s missing", dir)}
	}

	if countImages(dir) == 0 {
		return &BlockedError{Reason: fmt.Sprintf("image folder %s is empty", dir)}
	}

	rec, ok := o.cfg.Store.Record(address)
	if !ok {
		return &BlockedError{Reason: "no enrichment record"}
	}

	if rec.YearBuilt == nil {
		return &BlockedError{Reason: "year_built unknown"}
	}

	if rec.LotSqft == nil {
		return &BlockedError{Reason: "lot_sqft unknown"}
	}

	return nil
}

var recordValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks the typed enrichment record against its
// declared constraints (schema version, score ranges).
func ValidateRecord(rec *property.Record) error {
	err := recordValidator.Struct(rec)
	if err != nil {
		return fmt.Errorf("record validation: %w", err)
	}

	return nil
}

// fieldSchema validates extractor field bags against the declared
// enrichment fields; anything undeclared surfaces as an orphan.
var fieldSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	props := make(map[string]any)
	for _, name := range property.DeclaredFields() {
		props[name] = map[string]any{}
	}

	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
})

// CheckFieldCoverage returns the sorted extractor field names with no
// declared target on the enrichment record. Orphans are logged, not
// fatal: the values survive in Extras.
func CheckFieldCoverage(fields property.Fields) ([]string, error) {
	schema, err := fieldSchema()
	if err != nil {
		return nil, fmt.Errorf("build field schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(fields)))
	if err != nil {
		return nil, fmt.Errorf("validate field coverage: %w", err)
	}

	var orphans []string

	for _, resErr := range result.Errors() {
		if resErr.Type() != "additional_property_not_allowed" {
			continue
		}

		if name, ok := resErr.Details()["property"].(string); ok {
			orphans = append(orphans, name)
		}
	}

	sort.Strings(orphans)

	return orphans, nil
}
