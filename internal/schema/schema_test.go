package schema

import "testing"

func TestTargetShape(t *testing.T) {
	s := Target("")
	if err := s.Validate(); err != nil {
		t.Fatalf("default target schema invalid: %v", err)
	}
	if s.Attributes[1].Name != "target_value" {
		t.Fatalf("default value column: %s", s.Attributes[1].Name)
	}
	s = Target("demand")
	if s.Attributes[1].Name != "demand" || s.Attributes[1].Type != TypeFloat {
		t.Fatalf("named value column: %+v", s.Attributes[1])
	}
}

func TestRelatedKeepsCovariateOrder(t *testing.T) {
	s := Related([]Attribute{
		{Name: "temperature", Type: TypeFloat},
		{Name: "weather", Type: TypeString},
	})
	if err := s.Validate(); err != nil {
		t.Fatalf("related schema invalid: %v", err)
	}
	cols := s.ValueColumns()
	if len(cols) != 2 || cols[0].Name != "temperature" || cols[1].Name != "weather" {
		t.Fatalf("covariate order lost: %+v", cols)
	}
	if s.Names() != "timestamp,temperature,weather,item_id" {
		t.Fatalf("names: %s", s.Names())
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		s    Schema
	}{
		{"too short", Schema{Attributes: []Attribute{{Name: "timestamp", Type: TypeTimestamp}, {Name: "item_id", Type: TypeString}}}},
		{"timestamp not first", Schema{Attributes: []Attribute{{Name: "v", Type: TypeFloat}, {Name: "timestamp", Type: TypeTimestamp}, {Name: "item_id", Type: TypeString}}}},
		{"item_id not last", Schema{Attributes: []Attribute{{Name: "timestamp", Type: TypeTimestamp}, {Name: "item_id", Type: TypeString}, {Name: "v", Type: TypeFloat}}}},
		{"duplicate name", Schema{Attributes: []Attribute{{Name: "timestamp", Type: TypeTimestamp}, {Name: "v", Type: TypeFloat}, {Name: "v", Type: TypeFloat}, {Name: "item_id", Type: TypeString}}}},
		{"unknown type", Schema{Attributes: []Attribute{{Name: "timestamp", Type: TypeTimestamp}, {Name: "v", Type: "geolocation"}, {Name: "item_id", Type: TypeString}}}},
	}
	for _, tc := range cases {
		if err := tc.s.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
