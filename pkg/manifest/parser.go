package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// legacyDocument mirrors the teacher's retired channel/command Manifest
// shape, used only to detect and convert old-vocabulary documents.
type legacyDocument struct {
	Version     string                          `json:"version" yaml:"version"`
	Name        string                          `json:"name" yaml:"name"`
	Description string                          `json:"description" yaml:"description"`
	Channels    map[string]legacyChannel        `json:"channels" yaml:"channels"`
	Models      map[string]*Model               `json:"models" yaml:"models"`
}

type legacyChannel struct {
	Commands map[string]*RequestSpec `json:"commands" yaml:"commands"`
}

// probeDocument is decoded first to tell a legacy channels-keyed
// document apart from a current requests-keyed one.
type probeDocument struct {
	Channels map[string]interface{} `json:"channels" yaml:"channels"`
	Requests map[string]interface{} `json:"requests" yaml:"requests"`
}

func convertLegacy(doc *legacyDocument) *Manifest {
	m := &Manifest{
		Version:     doc.Version,
		Name:        doc.Name,
		Description: doc.Description,
		Requests:    map[string]*RequestSpec{},
		Models:      doc.Models,
	}
	for channelName, channel := range doc.Channels {
		for cmdName, spec := range channel.Commands {
			spec.Channel = channelName
			m.Requests[cmdName] = spec
		}
	}
	return m
}

// ParseJSON parses a requests-vocabulary or legacy channels-vocabulary
// JSON document into a validated Manifest.
func ParseJSON(data []byte) (*Manifest, error) {
	var probe probeDocument
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse manifest JSON: %w", err)
	}
	var m *Manifest
	if len(probe.Channels) > 0 && len(probe.Requests) == 0 {
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("parse legacy manifest JSON: %w", err)
		}
		m = convertLegacy(&legacy)
	} else {
		m = &Manifest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse manifest JSON: %w", err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseYAML parses a requests-vocabulary or legacy channels-vocabulary
// YAML document into a validated Manifest.
func ParseYAML(data []byte) (*Manifest, error) {
	var probe probeDocument
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	var m *Manifest
	if len(probe.Channels) > 0 && len(probe.Requests) == 0 {
		var legacy legacyDocument
		if err := yaml.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("parse legacy manifest YAML: %w", err)
		}
		m = convertLegacy(&legacy)
	} else {
		m = &Manifest{}
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse manifest YAML: %w", err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseFile auto-detects JSON vs YAML by file extension and parses accordingly.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest file %s", path)
	}
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return ParseYAML(data)
	case strings.HasSuffix(path, ".json"):
		return ParseJSON(data)
	default:
		return ParseAuto(data)
	}
}

// ParseAuto tries JSON first, then YAML, for sources with no reliable
// file extension (e.g. data received over the wire).
func ParseAuto(data []byte) (*Manifest, error) {
	if m, err := ParseJSON(data); err == nil {
		return m, nil
	}
	return ParseYAML(data)
}

// ParseFiles parses and merges several Manifest files by name-unioning
// their requests and models; duplicates across files are a hard failure.
func ParseFiles(paths ...string) (*Manifest, error) {
	manifests := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		m, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return Merge(manifests...)
}

// SerializeJSON validates then marshals the Manifest to JSON.
func SerializeJSON(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "  ")
}

// SerializeYAML validates then marshals the Manifest to YAML.
func SerializeYAML(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(m)
}
