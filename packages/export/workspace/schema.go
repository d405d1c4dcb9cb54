package workspace

// Schema is the JSON schema imported documents are validated against.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["_postai_format", "_postai_type", "environments"],
  "properties": {
    "_postai_format": {"const": true},
    "_postai_version": {"type": "string"},
    "_postai_type": {"enum": ["environments", "workspace"]},
    "_exported_at": {"type": "string"},
    "environments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "values"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": ["string", "null"]},
          "collection_id": {"type": ["string", "null"]},
          "is_active": {"type": "boolean"},
          "values": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key"],
              "properties": {
                "key": {"type": "string", "minLength": 1},
                "values": {"type": "array", "items": {"type": "string"}},
                "selected_value_index": {"type": "integer"},
                "enabled": {"type": "boolean"},
                "is_secret": {"type": "boolean"},
                "link_group": {"type": ["string", "null"]},
                "description": {"type": ["string", "null"]}
              }
            }
          }
        }
      }
    },
    "active_environments": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`
