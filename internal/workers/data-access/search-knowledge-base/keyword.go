package searchknowledgebase

import (
	"context"

	"care-assistant/internal/common/database"
)

// KeywordBackend searches an Elasticsearch index with a multi_match over title and content.
type KeywordBackend struct {
	es    *database.ElasticsearchClient
	index string
}

func NewKeywordBackend(es *database.ElasticsearchClient, index string) *KeywordBackend {
	return &KeywordBackend{es: es, index: index}
}

func (b *KeywordBackend) Name() string { return "elasticsearch" }

func (b *KeywordBackend) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "content"},
				"fuzziness": "AUTO",
			},
		},
	}

	hits, err := b.es.Search(ctx, b.index, body)
	if err != nil {
		return nil, err
	}

	out := make([]Passage, 0, len(hits))
	for _, hit := range hits {
		content, _ := hit.Source["content"].(string)
		if content == "" {
			continue
		}
		title, _ := hit.Source["title"].(string)
		out = append(out, Passage{ID: hit.ID, Title: title, Content: content, Score: float32(hit.Score)})
	}
	return out, nil
}

var _ Backend = (*KeywordBackend)(nil)
