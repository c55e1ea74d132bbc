package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Record is the content returned for one module at one level. Empty fields
// are omitted from JSON rather than rendered as null.
type Record struct {
	Definition      string     `json:"definition,omitempty" yaml:"definition"`
	Working         string     `json:"working,omitempty" yaml:"working"`
	Algorithm       string     `json:"algorithm,omitempty" yaml:"algorithm"`
	TimeComplexity  Complexity `json:"time_complexity,omitempty" yaml:"time_complexity"`
	SpaceComplexity string     `json:"space_complexity,omitempty" yaml:"space_complexity"`
	Applications    string     `json:"applications,omitempty" yaml:"applications"`
	Advantages      string     `json:"advantages,omitempty" yaml:"advantages"`
	Disadvantages   string     `json:"disadvantages,omitempty" yaml:"disadvantages"`
	InterviewNotes  string     `json:"interview_notes,omitempty" yaml:"interview_notes"`
	// Java is illustrative source plus expected output, stored verbatim.
	Java string `json:"java,omitempty" yaml:"java"`
}

func (r Record) clone() Record {
	r.TimeComplexity = slices.Clone(r.TimeComplexity)
	return r
}

// Bound is one operation's complexity description.
type Bound struct {
	Operation   string
	Description string
}

// Complexity maps operation names to complexity descriptions. The key set
// differs between records, and source order is kept on the wire.
type Complexity []Bound

// Get returns the description for op.
func (c Complexity) Get(op string) (string, bool) {
	for _, b := range c {
		if b.Operation == op {
			return b.Description, true
		}
	}
	return "", false
}

// Operations returns the keys in order.
func (c Complexity) Operations() []string {
	out := make([]string, len(c))
	for i, b := range c {
		out[i] = b.Operation
	}
	return out
}

func (c *Complexity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: time_complexity must be a mapping", n.Line)
	}
	out := make(Complexity, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.Tag != "!!str" {
			return fmt.Errorf("line %d: time_complexity %q must be a string", v.Line, k.Value)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate time_complexity key %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		out = append(out, Bound{Operation: k.Value, Description: v.Value})
	}
	*c = out
	return nil
}

// MarshalJSON writes an object in source order, without HTML escaping.
func (c Complexity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	put := func(s string) error {
		if err := enc.Encode(s); err != nil {
			return err
		}
		// Encode terminates every value with a newline
		buf.Truncate(buf.Len() - 1)
		return nil
	}

	buf.WriteByte('{')
	for i, b := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := put(b.Operation); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := put(b.Description); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Complexity) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("time_complexity: expected object, got %v", tok)
	}
	out := Complexity{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		var desc string
		if err := dec.Decode(&desc); err != nil {
			return fmt.Errorf("time_complexity %q: %w", kt, err)
		}
		out = append(out, Bound{Operation: kt.(string), Description: desc})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
