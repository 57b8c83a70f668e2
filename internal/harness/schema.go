package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// loadSchema compiles the embedded schema once. A cue.Context is not safe
// for concurrent use, so validation holds schemaMu.
func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("scenario.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Scenario"))
		if err := schemaDef.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Scenario: %w", err)
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

var schemaMu sync.Mutex

// ValidateDocument checks a scenario YAML document against the embedded
// CUE schema. It rejects unknown fields, steps or ops naming more than one
// action, and values of the wrong type.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("schema: empty document")
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s", cueerrors.Details(err, nil))
	}
	return nil
}
