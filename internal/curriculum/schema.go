package curriculum

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaError lists every rule a document broke.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "schema violation: " + strings.Join(e.Problems, "; ")
}

var (
	recordSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return compileSchema(&TopicRecord{})
	})
	weeklySchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return compileSchema(&WeeklyUnit{})
	})
)

// RecordSchema returns the JSON Schema topic files are validated against.
func RecordSchema() ([]byte, error) {
	return json.MarshalIndent(reflectSchema(&TopicRecord{}), "", "  ")
}

// WeeklyUnitSchema returns the JSON Schema week files are validated against.
func WeeklyUnitSchema() ([]byte, error) {
	return json.MarshalIndent(reflectSchema(&WeeklyUnit{}), "", "  ")
}

// ValidateRecord checks encoded topic-record JSON against RecordSchema.
func ValidateRecord(doc []byte) error {
	s, err := recordSchema()
	if err != nil {
		return err
	}
	return validate(s, doc)
}

// ValidateWeeklyUnit checks encoded week-file JSON against WeeklyUnitSchema.
func ValidateWeeklyUnit(doc []byte) error {
	s, err := weeklySchema()
	if err != nil {
		return err
	}
	return validate(s, doc)
}

func reflectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.Reflect(v)
	// gojsonschema understands draft-07 keywords but not the 2020-12 meta-schema URI.
	s.Version = ""
	s.ID = ""
	return s
}

func compileSchema(v any) (*gojsonschema.Schema, error) {
	b, err := json.Marshal(reflectSchema(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

func validate(s *gojsonschema.Schema, doc []byte) error {
	res, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &SchemaError{Problems: problems}
}
