// Package schema describes the positional column contract shared by emitted
// flat files and the forecasting service's dataset definition. The service
// parses files by position, not by name, so attribute order is load-bearing.
package schema

import (
	"fmt"
	"strings"
)

// AttributeType enumerates the column types the service understands.
type AttributeType string

const (
	TypeTimestamp AttributeType = "timestamp"
	TypeFloat     AttributeType = "float"
	TypeString    AttributeType = "string"
)

// Attribute is one (name, type) pair in a dataset schema.
type Attribute struct {
	Name string        `json:"attributeName"`
	Type AttributeType `json:"attributeType"`
}

// Schema is an ordered attribute list. Order must match the emitted file's
// column order exactly.
type Schema struct {
	Attributes []Attribute `json:"attributes"`
}

// Target returns the canonical target-series schema:
// timestamp, the named value column, item id last.
func Target(valueName string) Schema {
	if valueName == "" {
		valueName = "target_value"
	}
	return Schema{Attributes: []Attribute{
		{Name: "timestamp", Type: TypeTimestamp},
		{Name: valueName, Type: TypeFloat},
		{Name: "item_id", Type: TypeString},
	}}
}

// Related returns the related-series schema: timestamp, the covariate columns
// in declared order, item id last.
func Related(covariates []Attribute) Schema {
	attrs := make([]Attribute, 0, len(covariates)+2)
	attrs = append(attrs, Attribute{Name: "timestamp", Type: TypeTimestamp})
	attrs = append(attrs, covariates...)
	attrs = append(attrs, Attribute{Name: "item_id", Type: TypeString})
	return Schema{Attributes: attrs}
}

// Validate checks the structural rules every ingestable schema obeys:
// timestamp first, item_id last, no duplicate names, known types only.
func (s Schema) Validate() error {
	if len(s.Attributes) < 3 {
		return fmt.Errorf("schema needs at least timestamp, one value column and item_id; got %d attributes", len(s.Attributes))
	}
	if s.Attributes[0].Name != "timestamp" || s.Attributes[0].Type != TypeTimestamp {
		return fmt.Errorf("first attribute must be timestamp; got %s/%s", s.Attributes[0].Name, s.Attributes[0].Type)
	}
	last := s.Attributes[len(s.Attributes)-1]
	if last.Name != "item_id" || last.Type != TypeString {
		return fmt.Errorf("last attribute must be item_id of type string; got %s/%s", last.Name, last.Type)
	}
	seen := make(map[string]bool, len(s.Attributes))
	for _, a := range s.Attributes {
		if a.Name == "" {
			return fmt.Errorf("attribute with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
		switch a.Type {
		case TypeTimestamp, TypeFloat, TypeString:
		default:
			return fmt.Errorf("attribute %q has unknown type %q", a.Name, a.Type)
		}
	}
	return nil
}

// ValueColumns returns the attribute names between timestamp and item_id,
// in schema order.
func (s Schema) ValueColumns() []Attribute {
	if len(s.Attributes) < 3 {
		return nil
	}
	return s.Attributes[1 : len(s.Attributes)-1]
}

// Names returns all attribute names in order, for diagnostics.
func (s Schema) Names() string {
	parts := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		parts[i] = a.Name
	}
	return strings.Join(parts, ",")
}
