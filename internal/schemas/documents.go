package schemas

// TocDocument describes the part of the site TOC that is traversed: the
// children of the first top-level item are modules, and every node has a
// string title.
var TocDocument = newSchema("toc document", `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"definitions": {
		"node": {
			"type": "object",
			"required": ["toc_title"],
			"properties": {
				"toc_title": {"type": "string"},
				"href": {"type": "string"},
				"children": {"type": "array", "items": {"$ref": "#/definitions/node"}}
			}
		}
	},
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {
			"type": "array",
			"minItems": 1,
			"items": [{
				"type": "object",
				"required": ["children"],
				"properties": {
					"children": {"type": "array", "items": {"$ref": "#/definitions/node"}}
				}
			}]
		}
	}
}`)

// Manifest describes a saved manifest: an object keyed by module name whose
// values hold the module index path and its command pages.
var Manifest = newSchema("manifest", `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"required": ["index", "cmdlets"],
		"properties": {
			"name": {"type": "string"},
			"index": {"type": "string"},
			"cmdlets": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name", "path"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"path": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}
}`)
