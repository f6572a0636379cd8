package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// MemoryIndex is a substring-scored article index used when no Elasticsearch
// backend is configured.
type MemoryIndex struct {
	mu       sync.RWMutex
	articles []Article
}

// NewMemoryIndex builds an index over the given articles; with none given it
// loads the built-in seed set.
func NewMemoryIndex(articles ...Article) *MemoryIndex {
	if len(articles) == 0 {
		articles = SeedArticles()
	}
	return &MemoryIndex{articles: articles}
}

// Add registers another article.
func (m *MemoryIndex) Add(article Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = append(m.articles, article)
}

// Search scores every article against the query tokens. Title and tag hits
// weigh double content hits. A concrete category narrows the candidate set;
// uncategorized searches the whole index.
func (m *MemoryIndex) Search(_ context.Context, query string, category domain.TicketCategory, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, article := range m.articles {
		if category != "" && category != domain.CategoryUncategorized && article.Category != category {
			continue
		}
		score := scoreArticle(article, tokens)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Article: article, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Article.Relevance != matches[j].Article.Relevance {
			return matches[i].Article.Relevance > matches[j].Article.Relevance
		}
		return matches[i].Article.Title < matches[j].Article.Title
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scoreArticle(article Article, tokens []string) float64 {
	title := strings.ToLower(article.Title)
	content := strings.ToLower(article.Content)

	var score float64
	for _, token := range tokens {
		if strings.Contains(title, token) {
			score += 2
		}
		if strings.Contains(content, token) {
			score++
		}
		for _, tag := range article.Tags {
			if strings.Contains(strings.ToLower(tag), token) {
				score += 2
				break
			}
		}
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.Trim(f, ".,!?:;\"'()")
		if len(token) >= 3 {
			out = append(out, token)
		}
	}
	return out
}
