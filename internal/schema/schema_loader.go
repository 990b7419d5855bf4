// Package schema validates JSON documents against the embedded JSON schemas
// for question files and API request bodies.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names
const (
	QuestionFile       = "question_file"
	OutcomeRequest     = "outcome_request"
	LedgerEntryRequest = "ledger_entry_request"
)

// Loader holds compiled schemas by name
type Loader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewLoader compiles every embedded schema
func NewLoader() (*Loader, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list embedded schemas")
	}

	l := &Loader{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to read schema %s", entry.Name())
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "failed to compile schema %s: %w", entry.Name(), err)
		}
		l.schemas[strings.TrimSuffix(entry.Name(), ".json")] = compiled
	}
	return l, nil
}

// MustNewLoader is NewLoader for package initialization; embedded schemas are fixed at build time
func MustNewLoader() *Loader {
	l, err := NewLoader()
	if err != nil {
		panic(err)
	}
	return l
}

// Names lists the loaded schemas
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.schemas))
	for name := range l.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateBytes validates a raw JSON document against the named schema
func (l *Loader) ValidateBytes(schemaName string, data []byte) error {
	compiled, ok := l.schemas[schemaName]
	if !ok {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidFormat,
			contextutils.SeverityWarn,
			"document is not valid JSON",
			err.Error(),
			err,
		)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return contextutils.NewAppError(
		contextutils.ErrorCodeValidationFailed,
		contextutils.SeverityWarn,
		fmt.Sprintf("document does not match schema %s", schemaName),
		strings.Join(problems, "; "),
	)
}

// ValidateData marshals data to JSON and validates it against the named schema
func (l *Loader) ValidateData(schemaName string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}
	return l.ValidateBytes(schemaName, raw)
}
