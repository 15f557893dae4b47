// Package templates holds the clinical note templates that shape session
// summaries. Built-in templates can be overridden or extended from a YAML file.
package templates

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Field is one labelled section of a structured note.
type Field struct {
	Label       string `yaml:"label" json:"label"`
	Placeholder string `yaml:"placeholder" json:"placeholder"`
	Type        string `yaml:"type" json:"type"` // text, textarea, date
	Suffix      string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
}

// Template describes how a summary note is laid out.
type Template struct {
	ID              string  `yaml:"id" json:"id"`
	Name            string  `yaml:"name" json:"name"`
	Format          string  `yaml:"format" json:"format"`
	Fields          []Field `yaml:"fields" json:"fields"`
	IncludeCPTCodes bool    `yaml:"include_cpt_codes" json:"include_cpt_codes"`
	Instructions    string  `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Validate reports every structural problem with the template.
func (t Template) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("template id is missing"))
	}
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, errors.New("template name is missing"))
	}
	if strings.TrimSpace(t.Format) == "" {
		errs = append(errs, errors.New("template format is missing"))
	}
	if len(t.Fields) == 0 {
		errs = append(errs, errors.New("template has no fields defined"))
	}
	for i, f := range t.Fields {
		if f.Label == "" {
			errs = append(errs, fmt.Errorf("field %d is missing label", i))
		}
		if f.Placeholder == "" {
			errs = append(errs, fmt.Errorf("field %d is missing placeholder", i))
		}
		if f.Type == "" {
			errs = append(errs, fmt.Errorf("field %d is missing type", i))
		}
	}
	return errors.Join(errs...)
}

// Labels returns the field labels in order.
func (t Template) Labels() []string {
	labels := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		labels[i] = f.Label
	}
	return labels
}

// ErrNotFound is returned by Delete for an unknown template id.
var ErrNotFound = errors.New("template not found")

// Catalog is a set of templates keyed by id. It is safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	byID map[string]Template
}

// NewCatalog builds a catalog from the given templates. Later entries with the
// same id replace earlier ones.
func NewCatalog(ts ...Template) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Template, len(ts))}
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
		c.byID[t.ID] = t
	}
	return c, nil
}

// Default returns the catalog of built-in templates.
func Default() *Catalog {
	c, err := NewCatalog(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("templates: invalid built-in template: %v", err))
	}
	return c
}

type fileFormat struct {
	Templates []Template `yaml:"templates"`
}

// LoadFile returns the built-in templates merged with those defined in the
// YAML file at path. File templates override built-ins with the same id.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing templates file: %w", err)
	}

	return NewCatalog(append(Builtin(), f.Templates...)...)
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[id]
	return t, ok
}

// Put validates t and adds it, replacing any template with the same id.
// created is false when an existing template was replaced.
func (c *Catalog) Put(t Template) (created bool, err error) {
	t.ID = strings.TrimSpace(t.ID)
	if err := t.Validate(); err != nil {
		return false, err
	}
	t.Fields = append([]Field(nil), t.Fields...)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.byID[t.ID]
	c.byID[t.ID] = t
	return !exists, nil
}

// Delete removes the template with the given id.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(c.byID, id)
	return nil
}

// List returns all templates sorted by id.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Template, 0, len(c.byID))
	for _, t := range c.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
