package manifest

import "testing"

func sampleManifest() *Manifest {
	return &Manifest{
		Version: "1.0.0",
		Name:    "demo",
		Requests: map[string]*RequestSpec{
			"get_user": {
				Description: "fetch a user by id",
				Args: map[string]*Argument{
					"id": {Type: TypeString, Required: true, MinLength: intPtr(1)},
				},
				Response: &ResponseDefinition{Type: TypeObject, ModelRef: "User"},
			},
		},
		Models: map[string]*Model{
			"User": {
				Type: TypeObject,
				Properties: map[string]*Argument{
					"id":   {Type: TypeString},
					"name": {Type: TypeString},
				},
				Required: []string{"id"},
			},
		},
	}
}

func intPtr(i int) *int { return &i }

func TestManifestValidate(t *testing.T) {
	m := sampleManifest()
	if err := m.Validate(); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
}

func TestManifestRejectsEmptyVersion(t *testing.T) {
	m := sampleManifest()
	m.Version = ""
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for empty version")
	}
}

func TestManifestRejectsEmptyRequests(t *testing.T) {
	m := &Manifest{Version: "1.0.0", Requests: map[string]*RequestSpec{}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for empty requests")
	}
}

func TestManifestRejectsReservedName(t *testing.T) {
	m := sampleManifest()
	m.Requests["ping"] = &RequestSpec{Description: "not allowed"}
	err := m.Validate()
	if err == nil {
		t.Fatal("expected error for reserved name")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Code != -32013 {
		t.Fatalf("expected code -32013, got %d", ve.Code)
	}
}

func TestManifestRejectsUnresolvedModelRef(t *testing.T) {
	m := sampleManifest()
	m.Requests["get_user"].Response.ModelRef = "DoesNotExist"
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for unresolved modelRef")
	}
}

func TestManifestRejectsBadMinMax(t *testing.T) {
	m := sampleManifest()
	lo, hi := 10.0, 1.0
	m.Requests["get_user"].Args["id"] = &Argument{Type: TypeNumber, Minimum: &lo, Maximum: &hi}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for minimum > maximum")
	}
}

func TestResolveModelWithExtends(t *testing.T) {
	m := sampleManifest()
	m.Models["AdminUser"] = &Model{
		Extends:    "User",
		Properties: map[string]*Argument{"role": {Type: TypeString}},
		Required:   []string{"role"},
	}
	resolved, err := m.ResolveModel("AdminUser")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := resolved.Properties["id"]; !ok {
		t.Fatal("expected inherited property id")
	}
	if _, ok := resolved.Properties["role"]; !ok {
		t.Fatal("expected own property role")
	}
}

func TestMergeDetectsDuplicates(t *testing.T) {
	a := sampleManifest()
	b := sampleManifest()
	if _, err := Merge(a, b); err == nil {
		t.Fatal("expected duplicate request name to fail merge")
	}
}

func TestMergeUnion(t *testing.T) {
	a := sampleManifest()
	b := &Manifest{
		Version: "1.0.0",
		Requests: map[string]*RequestSpec{
			"list_users": {Description: "list all users"},
		},
	}
	merged, err := Merge(a, b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !merged.HasRequest("get_user") || !merged.HasRequest("list_users") {
		t.Fatalf("expected union of both requests, got %v", merged.RequestNames())
	}
}
