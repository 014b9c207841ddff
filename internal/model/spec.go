package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxIdeaLength       = 10000
	MaxFeedbackLength   = 10000
	SpecListLimit       = 10
	DefaultModuleName   = "api_module"
	DefaultLanguage     = "python"
	MaxStubOptionLength = 50
)

// FieldTypes lists the entity field types a document may use.
var FieldTypes = []string{"string", "text", "integer", "number", "boolean", "date", "datetime", "email"}

type Document struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules"`
	KPIs        []string `json:"kpis"`

	// Extra keeps top-level keys outside the known shape, so whatever the
	// generator adds survives storage and later refinement.
	Extra map[string]json.RawMessage `json:"-"`
}

var documentKeys = []string{"title", "description", "modules", "kpis"}

func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	for _, key := range documentKeys {
		delete(extra, key)
	}
	if len(extra) == 0 {
		extra = nil
	}

	known.Extra = extra
	*d = Document(known)
	return nil
}

// MarshalJSON writes the known fields and then any extra keys. A known field
// always wins over an extra key of the same name.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	known, err := json.Marshal(plain(d))
	if err != nil || len(d.Extra) == 0 {
		return known, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, value := range d.Extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

type Module struct {
	Name     string   `json:"name"`
	Purpose  string   `json:"purpose"`
	Entities []Entity `json:"entities"`
	APIs     []API    `json:"apis"`
	UI       []UI     `json:"ui"`
}

type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  *bool  `json:"required,omitempty"`
	Unique    *bool  `json:"unique,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
	HelpText  string `json:"help_text,omitempty"`
}

type API struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Entity      string `json:"entity,omitempty"`
	Description string `json:"description,omitempty"`
}

type UI struct {
	Type    string    `json:"type"`
	Name    string    `json:"name,omitempty"`
	Entity  string    `json:"entity"`
	Columns []string  `json:"columns,omitempty"`
	Fields  []UIField `json:"fields,omitempty"`
}

type UIField struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    *bool  `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	HelpText    string `json:"help_text,omitempty"`
}

// Validate checks the required shape of a document. Missing collections are
// normalized to empty slices so stored documents always serialize as arrays.
func (d *Document) Validate() error {
	var problems []string

	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if d.Modules == nil {
		problems = append(problems, "modules is required")
	}
	if d.KPIs == nil {
		problems = append(problems, "kpis is required")
	}

	for i := range d.Modules {
		m := &d.Modules[i]
		if strings.TrimSpace(m.Name) == "" {
			problems = append(problems, fmt.Sprintf("modules[%d].name is required", i))
		}
		if m.Entities == nil {
			m.Entities = []Entity{}
		}
		if m.APIs == nil {
			m.APIs = []API{}
		}
		if m.UI == nil {
			m.UI = []UI{}
		}
		for j := range m.Entities {
			if m.Entities[j].Fields == nil {
				m.Entities[j].Fields = []Field{}
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ModuleName derives the code-stub module name from the first module.
func (d Document) ModuleName() string {
	if len(d.Modules) == 0 || strings.TrimSpace(d.Modules[0].Name) == "" {
		return DefaultModuleName
	}
	return strings.ReplaceAll(strings.ToLower(d.Modules[0].Name), " ", "_")
}

type Spec struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Idea      string    `json:"idea"`
	Document  Document  `json:"spec_json"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Implementation struct {
	ModelsPy      string `json:"models_py"`
	SerializersPy string `json:"serializers_py"`
	ViewsPy       string `json:"views_py"`
	URLsPy        string `json:"urls_py"`
}

type CodeStubs struct {
	BlueprintID    string         `json:"blueprint_id"`
	ModuleName     string         `json:"module_name"`
	Language       string         `json:"language"`
	Framework      string         `json:"framework"`
	Implementation Implementation `json:"implementation"`
}
