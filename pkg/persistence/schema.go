package persistence

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/paygrid/payflow/pkg/models"
)

// workflowSchema is the record schema every store implementation checks
// before accepting an upsert. The engine trusts its own serialization, so a
// record failing here means the in-memory aggregate is already corrupt.
const workflowSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "owner", "type", "state", "version", "source", "events"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"owner": {"type": "string", "minLength": 1},
		"type": {
			"type": "string",
			"enum": [
				"outgoing_cheque", "incoming_cheque",
				"outgoing_invoice", "incoming_invoice",
				"outgoing_voucher", "incoming_voucher",
				"outgoing_transfer", "incoming_transfer", "internal_transfer",
				"outgoing_cash", "incoming_cash"
			]
		},
		"state": {
			"type": "string",
			"enum": [
				"unsent", "conveyed", "initiated", "acknowledged",
				"accepted", "completed", "aborted", "cancelled",
				"expired", "rejected", "error"
			]
		},
		"version": {"type": "integer", "minimum": 1},
		"notary": {"type": "string"},
		"source": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "revision", "raw"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"revision": {"type": "integer", "minimum": 1},
					"raw": {"type": "string"}
				}
			}
		},
		"events": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["version", "type", "method", "time", "success"],
				"properties": {
					"version": {"type": "integer", "minimum": 1},
					"type": {
						"type": "string",
						"enum": [
							"create", "convey", "accept", "complete",
							"abort", "cancel", "acknowledge", "expire"
						]
					},
					"method": {"type": "string"},
					"success": {"type": "boolean"}
				}
			}
		},
		"parties": {"type": "array", "items": {"type": "string"}},
		"accounts": {"type": "array", "items": {"type": "string"}},
		"units": {"type": "array", "items": {"type": "string"}}
	}
}`

var compiledSchema = gojsonschema.NewStringLoader(workflowSchema)

// ValidateRecord checks a workflow record against the storage schema.
// Returns ErrSchemaInvalid (wrapped) on any violation.
func ValidateRecord(workflow *models.Workflow) error {
	data, err := workflow.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}

	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}

	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			details += desc.String() + "; "
		}

		return fmt.Errorf("%w: %s", ErrSchemaInvalid, details)
	}

	return nil
}
