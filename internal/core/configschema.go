package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/valter-silva-au/paperless-tasks/internal/storage"
)

const configSchemaURL = "config.schema.json"

// configSchema describes the shape of the configuration file. Unknown keys
// are allowed so older files with extra settings keep loading.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "PAPERLESS_URL": {"type": "string", "minLength": 1},
    "PAPERLESS_TOKEN": {"type": "string"},
    "SCOPES": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "ACTION_TASK_LIST_ID": {"type": "string", "minLength": 1},
    "ACTION_THRESHOLD": {
      "anyOf": [
        {"type": "number"},
        {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}
      ]
    },
    "CUSTOM_FIELD_STATUS": {"type": "integer", "minimum": 1},
    "CUSTOM_FIELD_AKTION": {"type": "integer", "minimum": 1},
    "CUSTOM_FIELD_PROCESSED_DATE": {"type": "integer", "minimum": 1},
    "STATUS_LABEL_TO_ID": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "STATUS_NEW_LABEL": {"type": "string", "minLength": 1},
    "STATUS_DONE_LABEL": {"type": "string", "minLength": 1},
    "TOKEN_FILE": {"type": "string", "minLength": 1},
    "TASKS_API_URL": {"type": "string"},
    "PUBLIC_BASE_URL": {"type": "string"},
    "REAUTHORIZE_URL": {"type": "string"},
    "SWEEP_INTERVAL": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))+$"},
    "EVENT_LOG": {"type": "string"},
    "SLACK_WEBHOOK_URL": {"type": "string"},
    "SERVER_HOST": {"type": "string"},
    "SERVER_PORT": {
      "anyOf": [
        {"type": "integer", "minimum": 1, "maximum": 65535},
        {"type": "string", "pattern": "^[0-9]{1,5}$"}
      ]
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadConfigSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parsing config schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(configSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("adding config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(configSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateConfigDocument checks a raw configuration document (as returned
// by storage.ReadConfigDocument) against the config file schema.
func ValidateConfigDocument(doc any) error {
	sch, err := loadConfigSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	return nil
}

// ValidateConfigFile runs the schema check on the file at path followed by
// the semantic checks of ValidateConfig on the loaded configuration.
func ValidateConfigFile(path string) error {
	doc, err := storage.ReadConfigDocument(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := ValidateConfigDocument(doc); err != nil {
		return err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return ValidateConfig(cfg)
}
