// pkg/registry/schema.go
package registry

// QueryCatalog is the on-disk form of the analytical query catalog.
type QueryCatalog struct {
	Version     string       `json:"version" yaml:"version"`
	LastUpdated string       `json:"lastUpdated" yaml:"last_updated"`
	Queries     []QueryEntry `json:"queries" yaml:"queries"`
}

// QueryEntry declares one named query. Params maps each parameter name to its spec.
type QueryEntry struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	SQL         string               `json:"sql" yaml:"sql"`
	Params      map[string]ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`
	ResultShape map[string]string    `json:"resultShape,omitempty" yaml:"result_shape,omitempty"`
	UseCases    []string             `json:"useCases,omitempty" yaml:"use_cases,omitempty"`
	AvoidWhen   []string             `json:"avoidWhen,omitempty" yaml:"avoid_when,omitempty"`
	Tags        []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type ParamSpec struct {
	Type     string      `json:"type" yaml:"type"`
	Required bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Nullable bool        `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}
