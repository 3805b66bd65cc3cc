package gateway

import "github.com/roach88/trustlens/internal/transport"

// pageSchema checks the list page shape before decoding.
var pageSchema = transport.MustJSONSchema("page", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["items", "total"],
	"properties": {
		"items": {"type": "array"},
		"total": {"type": "integer", "minimum": 0},
		"page": {"type": "integer", "minimum": 1},
		"perPage": {"type": "integer", "minimum": 1}
	}
}`)

// snapshotSchema checks that every graph collection is present and an array.
var snapshotSchema = transport.MustJSONSchema("graph-snapshot", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["participants", "trustlines", "equivalents"],
	"properties": {
		"participants": {
			"type": "array",
			"items": {"type": "object", "required": ["pid"], "properties": {"pid": {"type": "string", "minLength": 1}}}
		},
		"trustlines": {
			"type": "array",
			"items": {"type": "object", "required": ["equivalent", "from", "to"]}
		},
		"incidents": {"type": "array"},
		"equivalents": {
			"type": "array",
			"items": {"type": "object", "required": ["code"]}
		},
		"debts": {"type": "array"},
		"auditLog": {"type": "array"},
		"transactions": {"type": "array"}
	}
}`)
