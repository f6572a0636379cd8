// Package knowledge retrieves help articles for the workflow's
// knowledge-search step. Retrieval plumbing only; answer quality is the
// content team's problem.
package knowledge

import (
	"context"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// relevanceThreshold is the article quality score above which a matched
// article counts as a usable solution.
const relevanceThreshold = 0.7

// DefaultLimit caps search results handed to the workflow step.
const DefaultLimit = 3

// Article is one knowledge-base entry. Relevance is a static editorial
// quality weight, not a per-query score.
type Article struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Content   string                `json:"content"`
	Category  domain.TicketCategory `json:"category"`
	Tags      []string              `json:"tags,omitempty"`
	Author    string                `json:"author,omitempty"`
	Relevance float64               `json:"relevance"`
}

// Match pairs an article with its per-query score.
type Match struct {
	Article Article
	Score   float64
}

// Searcher finds articles for a query, optionally restricted to a category.
type Searcher interface {
	Search(ctx context.Context, query string, category domain.TicketCategory, limit int) ([]Match, error)
}

// BuildPayload converts search results into the workflow step payload. A
// solution counts as found when any matched article clears the relevance
// threshold.
func BuildPayload(query string, matches []Match) domain.KnowledgeSearchPayload {
	payload := domain.KnowledgeSearchPayload{
		ArticlesFound: len(matches),
		Query:         query,
	}
	for _, m := range matches {
		payload.Articles = append(payload.Articles, domain.ArticleRef{
			Title:    m.Article.Title,
			Category: m.Article.Category,
		})
		if m.Article.Relevance >= relevanceThreshold {
			payload.SolutionFound = true
		}
	}
	return payload
}

// SeedArticles returns the built-in help content used when no external
// article source is configured.
func SeedArticles() []Article {
	return []Article{
		{
			ID:        "kb-vpn-001",
			Title:     "VPN Connection Troubleshooting",
			Content:   "Restart the VPN client, confirm your credentials have not expired, and verify the office gateway address. If the tunnel still drops, remove and re-import the connection profile and test from another network.",
			Category:  domain.CategoryNetwork,
			Tags:      []string{"vpn", "remote-access", "connectivity"},
			Author:    "IT Knowledge Team",
			Relevance: 0.95,
		},
		{
			ID:        "kb-access-001",
			Title:     "Password Reset and Account Unlock",
			Content:   "Use the self-service portal to reset your password. Accounts lock after five failed attempts and unlock automatically after fifteen minutes; the service desk can unlock sooner after identity verification.",
			Category:  domain.CategoryAccess,
			Tags:      []string{"password", "account", "login"},
			Author:    "IT Knowledge Team",
			Relevance: 0.9,
		},
		{
			ID:        "kb-email-001",
			Title:     "Email Sync Issues on Mobile and Desktop",
			Content:   "Remove and re-add the account in the mail client, check that the mailbox is not over quota, and confirm the device passcode policy is accepted. Desktop clients may need a fresh profile.",
			Category:  domain.CategorySoftware,
			Tags:      []string{"email", "outlook", "sync"},
			Author:    "IT Knowledge Team",
			Relevance: 0.85,
		},
		{
			ID:        "kb-hardware-001",
			Title:     "Printer Setup and Troubleshooting",
			Content:   "Install the printer from the managed print portal rather than direct IP. Clear stuck jobs from the local queue, power cycle the device, and check the driver version against the model list.",
			Category:  domain.CategoryHardware,
			Tags:      []string{"printer", "hardware", "drivers"},
			Author:    "IT Knowledge Team",
			Relevance: 0.85,
		},
		{
			ID:        "kb-software-001",
			Title:     "Software Installation and License Requests",
			Content:   "Standard titles install from the software center without a ticket. Licensed products need manager approval; the request form reserves a seat and the installer unlocks once approval lands.",
			Category:  domain.CategorySoftware,
			Tags:      []string{"software", "install", "license"},
			Author:    "IT Knowledge Team",
			Relevance: 0.8,
		},
		{
			ID:        "kb-security-001",
			Title:     "Recognizing and Reporting Phishing Emails",
			Content:   "Do not click links or open attachments from unexpected senders. Use the report button in the mail client; the security team reviews every report and will confirm whether the message was malicious.",
			Category:  domain.CategorySecurity,
			Tags:      []string{"phishing", "security", "email"},
			Author:    "Security Team",
			Relevance: 0.9,
		},
	}
}
