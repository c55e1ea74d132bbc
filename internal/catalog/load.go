package catalog

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/dsa-learning-api/internal/xerrors"
)

//go:embed data/catalog.yaml data/schema.json
var embedded embed.FS

type options struct {
	version string
	now     func() time.Time
}

type Option func(*options)

// WithVersion overrides the hash-derived version label.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithClock sets the clock used for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Load decodes the catalog compiled into the binary.
func Load(opts ...Option) (*Store, error) {
	data, err := embedded.ReadFile("data/catalog.yaml")
	if err != nil {
		return nil, xerrors.Wrap(err, "read embedded catalog")
	}
	return Parse(data, opts...)
}

// Parse decodes and validates a catalog document. Module order in the
// document is preserved.
func Parse(data []byte, opts ...Option) (*Store, error) {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(err, "decode catalog")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &ValidationError{Problems: []string{"catalog document is empty"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("line %d: catalog must be a mapping of modules", root.Line)}}
	}
	if err := validateShape(root); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	s := &Store{
		records:  make(map[string]map[Level]Record, len(root.Content)/2),
		hash:     hex.EncodeToString(sum[:]),
		version:  o.version,
		loadedAt: o.now().UTC(),
	}
	if s.version == "" {
		s.version = s.hash[:12]
	}

	var problems []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, body := root.Content[i], root.Content[i+1]
		module := key.Value
		if _, dup := s.records[module]; dup {
			problems = append(problems, fmt.Sprintf("line %d: module %q defined twice", key.Line, module))
			continue
		}

		byLevel := make(map[Level]Record, len(levels))
		for j := 0; j+1 < len(body.Content); j += 2 {
			lk, lv := body.Content[j], body.Content[j+1]
			lvl := Level(lk.Value)
			if !lvl.Valid() {
				problems = append(problems, fmt.Sprintf("line %d: module %q: unknown level %q", lk.Line, module, lk.Value))
				continue
			}
			var rec Record
			if err := lv.Decode(&rec); err != nil {
				problems = append(problems, fmt.Sprintf("module %q level %q: %v", module, lvl, err))
				continue
			}
			byLevel[lvl] = rec
		}
		for _, lvl := range levels {
			if _, ok := byLevel[lvl]; !ok {
				problems = append(problems, fmt.Sprintf("module %q: missing level %q", module, lvl))
			}
		}

		s.modules = append(s.modules, module)
		s.records[module] = byLevel
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return s, nil
}
