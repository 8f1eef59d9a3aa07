package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is a named set of load and save settings for one kind of file.
//
//	profiles:
//	  customers:
//	    delimiter: ","
//	    encoding: windows-1252
//	    key: [customer_id]
//	    required: [customer_id, name]
//	    rename: {"customer no": customer_id}
//	    skip_empty: [customer_id]
//	    exclude: [internal_note]
//	    types: {balance: float, opened: date}
type Profile struct {
	Name string `yaml:"-"`

	Description string `yaml:"description,omitempty"`
	Delimiter   string `yaml:"delimiter,omitempty"`
	Encoding    string `yaml:"encoding,omitempty"`

	// HasColumns overrides CSV_HAS_COLUMNS when set.
	HasColumns *bool `yaml:"has_columns,omitempty"`

	// Key columns used for merging.
	Key []string `yaml:"key,omitempty"`

	// Required columns must be present in the header.
	Required []string `yaml:"required,omitempty"`

	// Rename maps normalized header names to column names.
	Rename map[string]string `yaml:"rename,omitempty"`

	// SkipEmpty excludes rows with an empty value in any of these columns.
	SkipEmpty []string `yaml:"skip_empty,omitempty"`

	// RejectEmpty fails the load on a row with an empty value in any of
	// these columns.
	RejectEmpty []string `yaml:"reject_empty,omitempty"`

	// Exclude drops columns on save.
	Exclude []string `yaml:"exclude,omitempty"`

	// Types declares column types (string, int, float, bool, date). Cells
	// are parsed after the load; a cell that does not parse fails it.
	Types map[string]string `yaml:"types,omitempty"`

	InferTypes bool `yaml:"infer_types,omitempty"`
	Workers    int  `yaml:"workers,omitempty"`
}

var validTypes = map[string]bool{"string": true, "int": true, "float": true, "bool": true, "date": true}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads profiles from a YAML file. An empty path yields no
// profiles.
func LoadProfiles(path string) ([]Profile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	profiles, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// ParseProfiles decodes and validates a profiles document. Profiles are
// returned sorted by name.
func ParseProfiles(data []byte) ([]Profile, error) {
	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(doc.Profiles))
	var errs []error
	for name, p := range doc.Profiles {
		p.Name = name
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		profiles = append(profiles, p)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Validate checks a single profile.
func (p *Profile) Validate() error {
	var errs []string
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is empty")
	}
	if p.Workers < 0 {
		errs = append(errs, "workers must be non-negative")
	}
	for from, to := range p.Rename {
		if strings.TrimSpace(to) == "" {
			errs = append(errs, fmt.Sprintf("rename of %q has an empty target", from))
		}
	}
	for col, typ := range p.Types {
		if !validTypes[strings.ToLower(strings.TrimSpace(typ))] {
			errs = append(errs, fmt.Sprintf("type of %q must be one of string, int, float, bool, date; got %q", col, typ))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("profile %q: %s", p.Name, strings.Join(errs, "; "))
	}
	return nil
}

// MarshalProfiles renders profiles back to YAML.
func MarshalProfiles(profiles []Profile) ([]byte, error) {
	doc := profileFile{Profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		doc.Profiles[p.Name] = p
	}
	return yaml.Marshal(doc)
}
