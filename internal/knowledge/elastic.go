package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// ElasticConfig holds connection values for the Elasticsearch article index.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Elastic searches articles stored in an Elasticsearch index.
type Elastic struct {
	cli   *elasticsearch.Client
	index string
}

// NewElastic builds the client. The index is created lazily on first use.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Index == "" {
		cfg.Index = "kb_articles"
	}
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.Username != "" || cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	cli, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	return &Elastic{cli: cli, index: cfg.Index}, nil
}

func (e *Elastic) ensureIndex(ctx context.Context) error {
	res, err := e.cli.Indices.Exists([]string{e.index}, e.cli.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := `{
        "mappings": {"properties": {
            "title":     {"type": "text"},
            "content":   {"type": "text"},
            "category":  {"type": "keyword"},
            "tags":      {"type": "keyword"},
            "author":    {"type": "keyword"},
            "relevance": {"type": "float"}
        }}
    }`
	req := esapi.IndicesCreateRequest{Index: e.index, Body: bytes.NewReader([]byte(mapping))}
	cres, err := req.Do(ctx, e.cli)
	if err != nil {
		return err
	}
	defer cres.Body.Close()
	if cres.IsError() {
		return fmt.Errorf("create index %s: %s", e.index, cres.String())
	}
	return nil
}

// Seed indexes the given articles, overwriting entries with the same id.
func (e *Elastic) Seed(ctx context.Context, articles []Article) error {
	if err := e.ensureIndex(ctx); err != nil {
		return err
	}
	for _, article := range articles {
		body, err := json.Marshal(article)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      e.index,
			DocumentID: article.ID,
			Body:       bytes.NewReader(body),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, e.cli)
		if err != nil {
			return err
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("index article %s: %s", article.ID, res.Status())
		}
	}
	return nil
}

// Search runs a multi_match over title, content and tags, filtered to the
// category when one is given.
func (e *Elastic) Search(ctx context.Context, query string, category domain.TicketCategory, limit int) ([]Match, error) {
	if err := e.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	match := map[string]any{
		"multi_match": map[string]any{
			"query":  query,
			"fields": []string{"title^2", "content", "tags"},
		},
	}
	boolQuery := map[string]any{"must": match}
	if category != "" && category != domain.CategoryUncategorized {
		boolQuery["filter"] = map[string]any{"term": map[string]any{"category": category}}
	}
	body, err := json.Marshal(map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": boolQuery},
	})
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{Index: []string{e.index}, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, e.cli)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", e.index, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source Article `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		matches = append(matches, Match{Article: hit.Source, Score: hit.Score})
	}
	return matches, nil
}

// Ping checks cluster reachability for readiness probes. A short deadline is
// enforced when the caller supplies none.
func (e *Elastic) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
	}
	res, err := e.cli.Info(e.cli.Info.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch info status %d", res.StatusCode)
	}
	return nil
}
