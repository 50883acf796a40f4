// Package manifest implements the Janus service contract: the in-memory
// Manifest model, its JSON/YAML parser, and the response validator that
// checks values against a Manifest's declared shapes.
package manifest

import (
	"fmt"
	"regexp"
	"sort"
)

// ArgType enumerates the scalar/compound types an Argument, Model, or
// ResponseDefinition may declare.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeInteger ArgType = "integer"
	TypeBoolean ArgType = "boolean"
	TypeArray   ArgType = "array"
	TypeObject  ArgType = "object"
)

func (t ArgType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// ReservedRequestNames are owned by the server's built-ins and may never
// be declared by a Manifest.
var ReservedRequestNames = map[string]bool{
	"ping":         true,
	"echo":         true,
	"get_info":     true,
	"validate":     true,
	"slow_process": true,
	"manifest":     true,
}

// Argument describes one named input to a request, or a field of an
// object-typed Argument/Model/ResponseDefinition.
type Argument struct {
	Type        ArgType              `json:"type" yaml:"type"`
	Required    bool                 `json:"required,omitempty" yaml:"required,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int                 `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern     string               `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Minimum     *float64             `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64             `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Enum        []interface{}        `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items       *Argument            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]*Argument `json:"properties,omitempty" yaml:"properties,omitempty"`
	ModelRef    string               `json:"modelRef,omitempty" yaml:"modelRef,omitempty"`
	Default     interface{}          `json:"default,omitempty" yaml:"default,omitempty"`
}

// ResponseDefinition shares Argument's shape; it is distinguished only
// by its position in a RequestSpec.
type ResponseDefinition = Argument

// Model is a reusable object schema, the same shape as an object
// Argument, with its own required-field list and optional inheritance.
type Model struct {
	Type        ArgType              `json:"type,omitempty" yaml:"type,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*Argument `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string             `json:"required,omitempty" yaml:"required,omitempty"`
	Extends     string               `json:"extends,omitempty" yaml:"extends,omitempty"`
}

// RequestSpec describes one request a Manifest's server exposes.
type RequestSpec struct {
	Description string               `json:"description" yaml:"description"`
	Args        map[string]*Argument `json:"args,omitempty" yaml:"args,omitempty"`
	Response    *ResponseDefinition  `json:"response,omitempty" yaml:"response,omitempty"`
	Timeout     float64              `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ErrorCodes  []int                `json:"errorCodes,omitempty" yaml:"errorCodes,omitempty"`

	// Channel is metadata-only provenance recorded when this RequestSpec
	// was converted from a legacy channels[*].commands[*] document. It is
	// not part of the wire protocol.
	Channel string `json:"-" yaml:"-"`
}

// Manifest is the declarative contract describing a service's requests,
// arguments, responses, and data models.
type Manifest struct {
	Version     string                  `json:"version" yaml:"version"`
	Name        string                  `json:"name,omitempty" yaml:"name,omitempty"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Requests    map[string]*RequestSpec `json:"requests" yaml:"requests"`
	Models      map[string]*Model       `json:"models,omitempty" yaml:"models,omitempty"`
}

// ValidationError is returned by Validate; Code is always -32013 per
// spec.md §4.4 (ManifestValidationError).
type ValidationError struct {
	Code    int
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed at %s: %s", e.Path, e.Message)
}

func manifestErr(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: -32013, Path: path, Message: fmt.Sprintf(format, args...)}
}

// HasRequest reports whether the Manifest declares a request by name.
func (m *Manifest) HasRequest(name string) bool {
	_, ok := m.Requests[name]
	return ok
}

// GetRequest returns the named RequestSpec, or nil if undeclared.
func (m *Manifest) GetRequest(name string) *RequestSpec {
	return m.Requests[name]
}

// RequestNames returns the declared request names in sorted order.
func (m *Manifest) RequestNames() []string {
	names := make([]string, 0, len(m.Requests))
	for n := range m.Requests {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the Manifest end-to-end per spec.md §4.2: non-empty
// version and requests, reserved-name rejection, recursive argument and
// response validation, and modelRef resolution.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return manifestErr("version", "version must be non-empty")
	}
	if len(m.Requests) == 0 {
		return manifestErr("requests", "manifest must declare at least one request")
	}
	for name, spec := range m.Requests {
		if name == "" {
			return manifestErr("requests", "request name must be non-empty")
		}
		if ReservedRequestNames[name] {
			return manifestErr("requests."+name, "%q is a reserved built-in request name", name)
		}
		if spec.Description == "" {
			return manifestErr("requests."+name, "description must be non-empty")
		}
		for argName, arg := range spec.Args {
			if err := m.validateArgument("requests."+name+".args."+argName, arg); err != nil {
				return err
			}
		}
		if spec.Response != nil {
			if err := m.validateArgument("requests."+name+".response", spec.Response); err != nil {
				return err
			}
		}
	}
	for name, model := range m.Models {
		if err := m.validateModel("models."+name, model); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) validateArgument(path string, a *Argument) error {
	if a == nil {
		return nil
	}
	if a.ModelRef != "" {
		if _, ok := m.Models[a.ModelRef]; !ok {
			return manifestErr(path, "modelRef %q does not resolve to a declared model", a.ModelRef)
		}
		return nil
	}
	if !a.Type.valid() {
		return manifestErr(path, "type %q is not one of string/number/integer/boolean/array/object", a.Type)
	}
	if a.Pattern != "" {
		if _, err := regexp.Compile(a.Pattern); err != nil {
			return manifestErr(path, "pattern %q does not compile: %v", a.Pattern, err)
		}
	}
	if a.Minimum != nil && a.Maximum != nil && *a.Minimum > *a.Maximum {
		return manifestErr(path, "minimum %v exceeds maximum %v", *a.Minimum, *a.Maximum)
	}
	if a.Type == TypeArray && a.Items != nil {
		if err := m.validateArgument(path+".items", a.Items); err != nil {
			return err
		}
	}
	if a.Type == TypeObject {
		for propName, prop := range a.Properties {
			if err := m.validateArgument(path+".properties."+propName, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manifest) validateModel(path string, model *Model) error {
	if model.Extends != "" {
		if _, ok := m.Models[model.Extends]; !ok {
			return manifestErr(path, "extends %q does not resolve to a declared model", model.Extends)
		}
	}
	for propName, prop := range model.Properties {
		if err := m.validateArgument(path+".properties."+propName, prop); err != nil {
			return err
		}
	}
	return nil
}

// ResolveModel resolves a model reference, following the `extends` chain
// recursively and merging each parent's properties and required list
// underneath the child's own.
func (m *Manifest) ResolveModel(name string) (*Model, error) {
	model, ok := m.Models[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not declared", name)
	}
	if model.Extends == "" {
		return model, nil
	}
	parent, err := m.ResolveModel(model.Extends)
	if err != nil {
		return nil, err
	}
	merged := &Model{
		Type:        model.Type,
		Description: model.Description,
		Properties:  map[string]*Argument{},
		Required:    append([]string{}, parent.Required...),
	}
	for k, v := range parent.Properties {
		merged.Properties[k] = v
	}
	for k, v := range model.Properties {
		merged.Properties[k] = v
	}
	merged.Required = append(merged.Required, model.Required...)
	return merged, nil
}

// Merge unions Requests and Models from other into m by name; any name
// collision is a hard failure, per spec.md §4.2.
func (m *Manifest) Merge(other *Manifest) error {
	for name, spec := range other.Requests {
		if _, exists := m.Requests[name]; exists {
			return manifestErr("requests."+name, "duplicate request name across merged manifests")
		}
		if m.Requests == nil {
			m.Requests = map[string]*RequestSpec{}
		}
		m.Requests[name] = spec
	}
	for name, model := range other.Models {
		if _, exists := m.Models[name]; exists {
			return manifestErr("models."+name, "duplicate model name across merged manifests")
		}
		if m.Models == nil {
			m.Models = map[string]*Model{}
		}
		m.Models[name] = model
	}
	return nil
}

// Merge combines any number of Manifests into one by repeated pairwise
// Merge, starting from a deep-enough copy of the first.
func Merge(manifests ...*Manifest) (*Manifest, error) {
	if len(manifests) == 0 {
		return nil, fmt.Errorf("no manifests to merge")
	}
	result := &Manifest{
		Version:     manifests[0].Version,
		Name:        manifests[0].Name,
		Description: manifests[0].Description,
		Requests:    map[string]*RequestSpec{},
		Models:      map[string]*Model{},
	}
	for _, m := range manifests {
		if err := result.Merge(m); err != nil {
			return nil, err
		}
	}
	return result, nil
}
