package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is a parsed request file.
type File struct {
	Path      string         `yaml:"-"`
	Name      string         `yaml:"name"`
	BaseURL   string         `yaml:"baseUrl"`
	Variables map[string]any `yaml:"variables"`
	Requests  []*Request     `yaml:"requests"`
}

// Request is one request declaration.
type Request struct {
	Name           string            `yaml:"name"`
	Method         string            `yaml:"method"`
	Resource       string            `yaml:"resource"`
	Query          string            `yaml:"query"`
	Headers        Headers           `yaml:"headers"`
	Body           string            `yaml:"body"`
	File           string            `yaml:"file"`
	Multipart      string            `yaml:"multipart"`
	MultipartParam string            `yaml:"multipartParam"`
	FollowRedirect *bool             `yaml:"followRedirect"`
	Capture        map[string]string `yaml:"capture"`
	Expect         *Expect           `yaml:"expect"`
	Repeat         int               `yaml:"repeat"`

	Line int `yaml:"-"`
}

// Expect lists the checks applied to a response.
type Expect struct {
	Status   int               `yaml:"status"`
	Headers  map[string]string `yaml:"headers"`
	Contains string            `yaml:"contains"`
	JSON     map[string]any    `yaml:"json"`
	Exists   []string          `yaml:"exists"`
	Schema   string            `yaml:"schema"`
}

// Header is one declared header.
type Header struct {
	Name  string
	Value string
}

// Headers keeps declaration order. It accepts a mapping
// (`headers: {Accept: text/plain}`) or a list of single-entry mappings, which
// allows repeating a name.
type Headers []Header

func (h *Headers) UnmarshalYAML(node *yaml.Node) error {
	var out Headers
	switch node.Kind {
	case yaml.MappingNode:
		pairs, err := mappingPairs(node)
		if err != nil {
			return err
		}
		out = append(out, pairs...)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: header entries must be name: value mappings", item.Line)
			}
			pairs, err := mappingPairs(item)
			if err != nil {
				return err
			}
			out = append(out, pairs...)
		}
	default:
		return fmt.Errorf("line %d: headers must be a mapping or a list", node.Line)
	}
	*h = out
	return nil
}

func mappingPairs(node *yaml.Node) ([]Header, error) {
	var pairs []Header
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: header %q must have a scalar value", v.Line, k.Value)
		}
		pairs = append(pairs, Header{Name: k.Value, Value: v.Value})
	}
	return pairs, nil
}

func (r *Request) UnmarshalYAML(node *yaml.Node) error {
	type plain Request
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Request(p)
	r.Line = node.Line
	return nil
}

// DisplayName returns the request name, or "METHOD resource" when unnamed.
func (r *Request) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Method + " " + r.Resource
}
