package manifest

import "testing"

func TestResponseValidatorNoSpec(t *testing.T) {
	rv := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{})
	result := rv.Validate(map[string]interface{}{"anything": true}, nil)
	if !result.Valid {
		t.Fatal("expected NoSpecResult to be valid")
	}
}

func TestResponseValidatorTypeAndConstraints(t *testing.T) {
	minLen := 3
	max := 100.0
	def := &ResponseDefinition{
		Type: TypeObject,
		Properties: map[string]*Argument{
			"name":  {Type: TypeString, Required: true, MinLength: &minLen},
			"age":   {Type: TypeInteger, Maximum: &max},
			"roles": {Type: TypeArray, Items: &Argument{Type: TypeString}},
		},
	}
	rv := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{})

	valid := map[string]interface{}{
		"name":  "alice",
		"age":   float64(42),
		"roles": []interface{}{"admin", "user"},
	}
	result := rv.Validate(valid, def)
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %+v", result.Errors)
	}

	invalid := map[string]interface{}{
		"name":  "al",
		"age":   float64(200),
		"roles": []interface{}{42},
	}
	result = rv.Validate(invalid, def)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors (minLength, maximum, array item type), got %d: %+v", len(result.Errors), result.Errors)
	}
}

func TestResponseValidatorRequiredFieldMissing(t *testing.T) {
	def := &ResponseDefinition{
		Type: TypeObject,
		Properties: map[string]*Argument{
			"id": {Type: TypeString, Required: true},
		},
	}
	rv := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{})
	result := rv.Validate(map[string]interface{}{}, def)
	if result.Valid {
		t.Fatal("expected missing required field to invalidate")
	}
	if result.Errors[0].Message != "Required field is missing" {
		t.Fatalf("unexpected message: %s", result.Errors[0].Message)
	}
}

func TestResponseValidatorModelRef(t *testing.T) {
	m := &Manifest{
		Models: map[string]*Model{
			"User": {
				Properties: map[string]*Argument{
					"id": {Type: TypeString},
				},
				Required: []string{"id"},
			},
		},
	}
	rv := NewResponseValidator(m, ResponseValidatorOptions{})
	def := &ResponseDefinition{ModelRef: "User"}

	result := rv.Validate(map[string]interface{}{"id": "u1"}, def)
	if !result.Valid {
		t.Fatalf("expected valid, got %+v", result.Errors)
	}

	result = rv.Validate(map[string]interface{}{}, def)
	if result.Valid {
		t.Fatal("expected missing required modelRef field to invalidate")
	}
}

func TestResponseValidatorStrictRejectsExtraProperties(t *testing.T) {
	def := &ResponseDefinition{
		Type:       TypeObject,
		Properties: map[string]*Argument{"id": {Type: TypeString}},
	}
	permissive := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{})
	value := map[string]interface{}{"id": "u1", "extra": "surprise"}
	if result := permissive.Validate(value, def); !result.Valid {
		t.Fatalf("permissive mode should allow unknown properties, got %+v", result.Errors)
	}

	strict := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{Strict: true})
	if result := strict.Validate(value, def); result.Valid {
		t.Fatal("strict mode should reject unknown properties")
	}
}

func TestResponseValidatorEnum(t *testing.T) {
	def := &ResponseDefinition{Type: TypeString, Enum: []interface{}{"a", "b"}}
	rv := NewResponseValidator(&Manifest{}, ResponseValidatorOptions{})
	if result := rv.Validate("a", def); !result.Valid {
		t.Fatalf("expected valid enum value, got %+v", result.Errors)
	}
	if result := rv.Validate("z", def); result.Valid {
		t.Fatal("expected invalid enum value to fail")
	}
}
