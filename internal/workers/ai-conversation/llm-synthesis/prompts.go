package llmsynthesis

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Prompts is the prompts file: a base prompt, one specialization per query
// family and the query-to-family dispatch table.
type Prompts struct {
	Base           string            `yaml:"base"`
	Glossary       string            `yaml:"glossary"`
	Families       map[string]string `yaml:"families"`
	Queries        map[string]string `yaml:"queries"`
	Generic        string            `yaml:"generic"`
	KnowledgeBase  string            `yaml:"knowledge_base"`
	Conversational string            `yaml:"conversational"`
	Continuity     string            `yaml:"continuity"`
}

func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(p.Base) == "" {
		return nil, fmt.Errorf("parse prompts: base prompt is empty")
	}
	for query, family := range p.Queries {
		if _, ok := p.Families[family]; !ok {
			return nil, fmt.Errorf("parse prompts: %s maps to unknown family %q", query, family)
		}
	}
	return &p, nil
}

// Family returns the specialization for a query, or the generic rules.
func (p *Prompts) Family(queryName string) string {
	if family, ok := p.Queries[queryName]; ok {
		return p.Families[family]
	}
	return p.Generic
}

var germanMonths = [...]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli",
	"August", "September", "Oktober", "November", "Dezember"}

func render(tmpl string, now time.Time, topic string) string {
	r := strings.NewReplacer(
		"{{today}}", now.Format("02.01.2006"),
		"{{month}}", fmt.Sprintf("%s %d", germanMonths[now.Month()-1], now.Year()),
		"{{topic}}", topic,
	)
	return r.Replace(tmpl)
}
