// internal/workers/data-access/query-catalog/catalog.go
package querycatalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"care-assistant/internal/models"
	"care-assistant/pkg/registry"
)

var ErrCatalogInvalid = errors.New("CATALOG_INVALID")

var placeholderPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// Catalog is the read-only set of analytical queries, keyed by name.
type Catalog struct {
	version string
	queries map[string]*models.QueryDescriptor
	order   []string
}

// Load reads and validates the catalog file. Any invariant violation fails the load.
func Load(cfg *Config) (*Catalog, error) {
	file, err := registry.LoadCatalog(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}
	return FromRegistry(file)
}

// FromRegistry converts the file form into descriptors and checks them.
func FromRegistry(file *registry.QueryCatalog) (*Catalog, error) {
	c := &Catalog{
		version: file.Version,
		queries: make(map[string]*models.QueryDescriptor, len(file.Queries)),
	}

	var problems []string
	for _, entry := range file.Queries {
		d := toDescriptor(entry)
		if _, dup := c.queries[d.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate query name", d.Name))
			continue
		}
		problems = append(problems, Check(d)...)
		c.queries[d.Name] = d
		c.order = append(c.order, d.Name)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrCatalogInvalid, strings.Join(problems, "; "))
	}
	return c, nil
}

func toDescriptor(e registry.QueryEntry) *models.QueryDescriptor {
	d := &models.QueryDescriptor{
		Name:        strings.TrimSpace(e.Name),
		Description: strings.TrimSpace(e.Description),
		SQLTemplate: e.SQL,
		ParamTypes:  make(map[string]models.ParamType, len(e.Params)),
		Defaults:    map[string]interface{}{},
		ResultShape: e.ResultShape,
		UseCases:    e.UseCases,
		AvoidWhen:   e.AvoidWhen,
	}

	names := make([]string, 0, len(e.Params))
	for name := range e.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := e.Params[name]
		d.ParamTypes[name] = models.ParamType(strings.ToLower(spec.Type))
		if spec.Required {
			d.RequiredParams = append(d.RequiredParams, name)
		} else {
			d.OptionalParams = append(d.OptionalParams, name)
		}
		if spec.Nullable {
			d.Nullable = append(d.Nullable, name)
		}
		if spec.Default != nil {
			d.Defaults[name] = spec.Default
		}
	}
	return d
}

// Check returns every invariant violation of one descriptor.
func Check(d *models.QueryDescriptor) []string {
	var problems []string
	if d.Name == "" {
		return []string{"query without name"}
	}
	if strings.TrimSpace(d.SQLTemplate) == "" {
		problems = append(problems, fmt.Sprintf("%s: empty sql", d.Name))
	}

	for _, p := range Placeholders(d.SQLTemplate) {
		if !d.Declares(p) {
			problems = append(problems, fmt.Sprintf("%s: placeholder @%s is not declared", d.Name, p))
		}
	}

	for name, typ := range d.ParamTypes {
		if !typ.Valid() {
			problems = append(problems, fmt.Sprintf("%s: param %s has unsupported type %q", d.Name, name, typ))
		}
	}

	// NULL is only ever bound for an absent optional value
	for _, name := range d.Nullable {
		if d.IsRequired(name) {
			problems = append(problems, fmt.Sprintf("%s: required param %s cannot be nullable", d.Name, name))
		}
	}

	for name, def := range d.Defaults {
		if !d.IsOptional(name) {
			problems = append(problems, fmt.Sprintf("%s: default for %s which is not optional", d.Name, name))
			continue
		}
		if typ := d.TypeOf(name); typ.Valid() {
			if _, err := Coerce(def, typ); err != nil {
				problems = append(problems, fmt.Sprintf("%s: default for %s is not a %s", d.Name, name, typ))
			}
		}
	}
	return problems
}

// Placeholders lists the distinct @name placeholders of a template in order of appearance.
func Placeholders(sql string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(sql, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func (c *Catalog) Get(name string) (*models.QueryDescriptor, bool) {
	d, ok := c.queries[name]
	return d, ok
}

func (c *Catalog) Version() string { return c.version }

func (c *Catalog) Len() int { return len(c.queries) }

// Names returns query names in file order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Describe renders the public part of every descriptor for the selector prompt.
// SQL text is never included.
func (c *Catalog) Describe() string {
	var b strings.Builder
	for _, name := range c.order {
		d := c.queries[name]
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		if req := public(d.RequiredParams); len(req) > 0 {
			fmt.Fprintf(&b, "  Pflichtparameter: %s\n", strings.Join(req, ", "))
		}
		if opt := public(d.OptionalParams); len(opt) > 0 {
			fmt.Fprintf(&b, "  Optionale Parameter: %s\n", strings.Join(opt, ", "))
		}
		if len(d.UseCases) > 0 {
			fmt.Fprintf(&b, "  Verwenden für: %s\n", strings.Join(d.UseCases, "; "))
		}
		if len(d.AvoidWhen) > 0 {
			fmt.Fprintf(&b, "  Nicht verwenden wenn: %s\n", strings.Join(d.AvoidWhen, "; "))
		}
	}
	return b.String()
}

// seller_id and limit are bound by the executor; the model never proposes them.
func public(params []string) []string {
	var out []string
	for _, p := range params {
		if p == "seller_id" || p == "limit" || p == "secondary_name" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ReplacePlaceholders substitutes every @name occurrence with fn(name).
func ReplacePlaceholders(sql string, fn func(name string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(sql, func(m string) string {
		return fn(m[1:])
	})
}
