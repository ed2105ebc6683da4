package protocol

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/ansel1/merry"

	"github.com/roach88/serownia/internal/fold"
	"github.com/roach88/serownia/internal/store"
)

//go:embed schemas.cue
var schemasCUE string

// Kind is the protocol variant selected by a product's category.
type Kind int

const (
	KindOther Kind = iota
	KindCheese
	KindFermented
	KindCurdCheese
)

var kindNames = map[Kind]string{
	KindOther:      "other",
	KindCheese:     "cheese",
	KindFermented:  "fermented",
	KindCurdCheese: "curd_cheese",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a kind name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindOther, merry.Errorf("unknown protocol kind %q", s).
		WithUserMessage("Nieznany rodzaj protokołu.")
}

// Input types of a form field.
const (
	InputText   = "text"
	InputTime   = "time"
	InputNumber = "number"
	InputChoice = "choice"
)

// Field is one form field; Key is its detail-table column.
type Field struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Stage   string   `json:"stage,omitempty"`
	Input   string   `json:"input"`
	Options []string `json:"options,omitempty"`
	Default string   `json:"default,omitempty"`
	Volume  bool     `json:"volume"`
}

// Title is the label prefixed with the stage, if any.
func (f Field) Title() string {
	if f.Stage == "" {
		return f.Label
	}
	return f.Stage + ": " + f.Label
}

func (f Field) allows(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Schema is the field layout of one kind.
type Schema struct {
	Kind     Kind    `json:"-"`
	Category string  `json:"category"`
	Table    string  `json:"table"`
	Fields   []Field `json:"fields"`
}

// VolumeField returns the raw-material volume field.
func (s *Schema) VolumeField() Field {
	for _, f := range s.Fields {
		if f.Volume {
			return f
		}
	}
	return Field{}
}

// Field looks a field up by key.
func (s *Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Keys returns the field keys in form order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Defaults returns a value map with every field set to its default.
func (s *Schema) Defaults() map[string]string {
	values := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		values[f.Key] = f.Default
	}
	return values
}

// Schemas holds the schema of every kind that has a protocol.
type Schemas struct {
	byKind map[Kind]*Schema
}

// LoadSchemas compiles and validates a CUE document with a top-level
// "kinds" struct keyed by kind name.
func LoadSchemas(src string) (*Schemas, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schemas.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile protocol schemas: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate protocol schemas: %w", err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return nil, fmt.Errorf("protocol schemas: kinds is required")
	}
	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate kinds: %w", err)
	}

	out := &Schemas{byKind: make(map[Kind]*Schema)}
	for iter.Next() {
		kind, err := ParseKind(iter.Label())
		if err != nil || kind == KindOther {
			return nil, fmt.Errorf("protocol schemas: unknown kind %q", iter.Label())
		}
		var s Schema
		if err := iter.Value().Decode(&s); err != nil {
			return nil, fmt.Errorf("decode kind %s: %w", kind, err)
		}
		s.Kind = kind
		if err := checkSchema(&s); err != nil {
			return nil, err
		}
		out.byKind[kind] = &s
	}
	return out, nil
}

func checkSchema(s *Schema) error {
	volumes := 0
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Key] {
			return fmt.Errorf("kind %s: duplicate field %q", s.Kind, f.Key)
		}
		seen[f.Key] = true
		if f.Volume {
			volumes++
			if f.Input != InputNumber {
				return fmt.Errorf("kind %s: volume field %q must be a number", s.Kind, f.Key)
			}
		}
		if f.Input == InputChoice {
			if len(f.Options) == 0 {
				return fmt.Errorf("kind %s: choice field %q has no options", s.Kind, f.Key)
			}
			if f.Default != "" && !f.allows(f.Default) {
				return fmt.Errorf("kind %s: default %q of %q is not an option", s.Kind, f.Default, f.Key)
			}
		}
	}
	if volumes != 1 {
		return fmt.Errorf("kind %s: want exactly one volume field, got %d", s.Kind, volumes)
	}
	return nil
}

var defaultSchemas = sync.OnceValues(func() (*Schemas, error) {
	return LoadSchemas(schemasCUE)
})

// DefaultSchemas returns the built-in schemas, compiled once.
func DefaultSchemas() (*Schemas, error) {
	return defaultSchemas()
}

// For returns the schema of kind. KindOther has none.
func (s *Schemas) For(kind Kind) (*Schema, bool) {
	sc, ok := s.byKind[kind]
	return sc, ok
}

// ResolveKind maps a product category name to a kind. Matching ignores case,
// surrounding whitespace and Unicode normalization form.
func (s *Schemas) ResolveKind(categoryName string) Kind {
	for kind, sc := range s.byKind {
		if fold.Equal(sc.Category, categoryName) {
			return kind
		}
	}
	return KindOther
}

// Kinds returns the kinds with a schema, in declaration order of the enum.
func (s *Schemas) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DetailTables lists the detail tables the store must manage.
func (s *Schemas) DetailTables() []store.DetailTable {
	kinds := s.Kinds()
	tables := make([]store.DetailTable, 0, len(kinds))
	for _, k := range kinds {
		sc := s.byKind[k]
		tables = append(tables, store.DetailTable{Name: sc.Table, Columns: sc.Keys()})
	}
	return tables
}
