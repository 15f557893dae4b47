package templates

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	for _, id := range []string{"soap", "dap", "psychotherapy", "intake"} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("built-in template %q missing", id)
		}
	}

	list := c.List()
	if len(list) != 4 {
		t.Fatalf("List() returned %d templates, want 4", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID > list[i].ID {
			t.Errorf("List() not sorted: %q before %q", list[i-1].ID, list[i].ID)
		}
	}
}

func TestTemplateValidate(t *testing.T) {
	valid := Template{
		ID:     "x",
		Name:   "X",
		Format: "A: [A]",
		Fields: []Field{{Label: "A", Placeholder: "[A]", Type: "text"}},
	}

	tests := []struct {
		name    string
		mutate  func(*Template)
		wantErr string
	}{
		{"valid", func(*Template) {}, ""},
		{"missing name", func(t *Template) { t.Name = "" }, "name is missing"},
		{"missing format", func(t *Template) { t.Format = " " }, "format is missing"},
		{"no fields", func(t *Template) { t.Fields = nil }, "no fields"},
		{"field without label", func(t *Template) { t.Fields = []Field{{Placeholder: "[A]", Type: "text"}} }, "field 0 is missing label"},
		{"field without type", func(t *Template) { t.Fields = []Field{{Label: "A", Placeholder: "[A]"}} }, "field 0 is missing type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := valid
			tmpl.Fields = append([]Field(nil), valid.Fields...)
			tt.mutate(&tmpl)

			err := tmpl.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `templates:
  - id: soap
    name: SOAP (speech therapy)
    format: "S: [S]\nO: [O]\nA: [A]\nP: [P]"
    fields:
      - {label: S, placeholder: "[S]", type: textarea}
      - {label: O, placeholder: "[O]", type: textarea}
      - {label: A, placeholder: "[A]", type: textarea}
      - {label: P, placeholder: "[P]", type: textarea}
  - id: fluency
    name: Fluency Progress Note
    format: "TARGETS: [TARGETS]\nPROGRESS: [PROGRESS]"
    include_cpt_codes: true
    fields:
      - {label: TARGETS, placeholder: "[TARGETS]", type: textarea}
      - {label: PROGRESS, placeholder: "[PROGRESS]", type: textarea}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	soap, _ := c.Get("soap")
	if soap.Name != "SOAP (speech therapy)" {
		t.Errorf("soap.Name = %q, want override from file", soap.Name)
	}
	fluency, ok := c.Get("fluency")
	if !ok {
		t.Fatal("fluency template not loaded")
	}
	if !fluency.IncludeCPTCodes {
		t.Error("fluency.IncludeCPTCodes should be true")
	}
	if got := strings.Join(fluency.Labels(), ","); got != "TARGETS,PROGRESS" {
		t.Errorf("Labels() = %q", got)
	}
	if _, ok := c.Get("dap"); !ok {
		t.Error("built-in dap should survive the merge")
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile on missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("templates:\n  - id: broken\n    name: Broken\n"), 0o600)
	if _, err := LoadFile(bad); err == nil {
		t.Error("LoadFile with invalid template should fail")
	}

	garbled := filepath.Join(dir, "garbled.yaml")
	_ = os.WriteFile(garbled, []byte("templates: [\n"), 0o600)
	if _, err := LoadFile(garbled); err == nil {
		t.Error("LoadFile with malformed YAML should fail")
	}
}

func TestCatalogPutDelete(t *testing.T) {
	c := Default()
	fluency := Template{
		ID:     " fluency ",
		Name:   "Fluency Note",
		Format: "TARGETS: [TARGETS]",
		Fields: []Field{{Label: "TARGETS", Placeholder: "[TARGETS]", Type: "textarea"}},
	}

	created, err := c.Put(fluency)
	if err != nil || !created {
		t.Fatalf("Put() = %t, %v; want created", created, err)
	}
	got, ok := c.Get("fluency")
	if !ok {
		t.Fatal("Put() should store the trimmed id")
	}

	// The stored copy does not alias the caller's fields.
	fluency.Fields[0].Label = "CHANGED"
	if got.Fields[0].Label != "TARGETS" {
		t.Errorf("stored field label = %q, want TARGETS", got.Fields[0].Label)
	}

	fluency.Name = "Fluency Note v2"
	if created, err := c.Put(fluency); err != nil || created {
		t.Errorf("second Put() = %t, %v; want replaced", created, err)
	}
	if got, _ := c.Get("fluency"); got.Name != "Fluency Note v2" {
		t.Errorf("Name = %q, want replacement", got.Name)
	}

	if _, err := c.Put(Template{ID: "broken"}); err == nil {
		t.Error("Put() with invalid template should fail")
	}
	if _, ok := c.Get("broken"); ok {
		t.Error("invalid template should not be stored")
	}

	if err := c.Delete("fluency"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, ok := c.Get("fluency"); ok {
		t.Error("template still present after Delete")
	}
	if err := c.Delete("fluency"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() of missing template = %v, want ErrNotFound", err)
	}
	if len(c.List()) != 4 {
		t.Errorf("List() = %d templates, want the 4 built-ins", len(c.List()))
	}
}
