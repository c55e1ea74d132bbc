package catalog

import (
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/dsa-learning-api/internal/xerrors"
)

// ValidationError lists every problem found in a catalog document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid catalog: " + strings.Join(e.Problems, "; ")
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	raw, err := embedded.ReadFile("data/schema.json")
	if err != nil {
		return nil, xerrors.Wrap(err, "read catalog schema")
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, xerrors.Wrap(err, "compile catalog schema")
	}
	return s, nil
})

// validateShape checks root against data/schema.json. It catches missing
// levels, missing or null fields and unknown keys before any record is built.
func validateShape(root *yaml.Node) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := root.Decode(&doc); err != nil {
		return xerrors.Wrap(err, "decode catalog for validation")
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return xerrors.Wrap(err, "validate catalog")
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		problems = append(problems, re.String())
	}
	return &ValidationError{Problems: problems}
}
