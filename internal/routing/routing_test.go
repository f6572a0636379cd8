package routing

import (
	"strings"
	"testing"

	"github.com/opsline/helpdesk-core/internal/domain"
)

func TestDefaultTableLookups(t *testing.T) {
	t.Parallel()

	table := Default()

	team := table.TeamFor(domain.TriggerSecurityIssue, domain.CategoryHardware)
	if team.ID != domain.TeamSecurity {
		t.Errorf("security trigger should route to security regardless of category, got %q", team.ID)
	}

	team = table.TeamFor(domain.TriggerSLABreach, domain.CategoryNetwork)
	if team.ID != domain.TeamNetwork {
		t.Errorf("expected network team, got %q", team.ID)
	}

	team = table.TeamFor(domain.TriggerSLAWarning, domain.CategoryUncategorized)
	if team.ID != domain.TeamGeneral {
		t.Errorf("expected general fallback, got %q", team.ID)
	}

	team = table.TeamByCategory(domain.TicketCategory("facilities"))
	if team.ID != domain.TeamGeneral {
		t.Errorf("unknown category should fall back to general, got %q", team.ID)
	}

	if len(table.Teams()) != 7 {
		t.Errorf("expected 7 built-in teams, got %d", len(table.Teams()))
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	t.Parallel()

	table, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := table.Team(domain.TeamGeneral); !ok {
		t.Fatal("default table must contain the general team")
	}
}

func TestParseTable(t *testing.T) {
	t.Parallel()

	raw := []byte(`
[[teams]]
id = "general"
name = "General Support"
channel = "#support"

[[teams]]
id = "platform"
name = "Platform Team"
channel = "#platform"

[categories]
software = "platform"

[triggers]
security_issue = "platform"
`)

	table, err := Parse(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	team := table.TeamFor(domain.TriggerSecurityIssue, domain.CategoryGeneral)
	if team.ID != domain.TeamID("platform") {
		t.Errorf("expected platform via trigger mapping, got %q", team.ID)
	}
	team = table.TeamByCategory(domain.CategorySoftware)
	if team.ID != domain.TeamID("platform") {
		t.Errorf("expected platform via category mapping, got %q", team.ID)
	}
	team = table.TeamByCategory(domain.CategoryHardware)
	if team.ID != domain.TeamGeneral {
		t.Errorf("expected general fallback, got %q", team.ID)
	}
}

func TestParseRejectsMissingGeneralTeam(t *testing.T) {
	t.Parallel()

	raw := []byte(`
[[teams]]
id = "platform"
name = "Platform Team"
channel = "#platform"
`)
	if _, err := Parse(raw); err == nil || !strings.Contains(err.Error(), "fallback") {
		t.Fatalf("expected fallback-team error, got %v", err)
	}
}

func TestParseRejectsUnknownTeamReference(t *testing.T) {
	t.Parallel()

	raw := []byte(`
[[teams]]
id = "general"
name = "General Support"
channel = "#support"

[categories]
software = "ghosts"
`)
	if _, err := Parse(raw); err == nil || !strings.Contains(err.Error(), "unknown team") {
		t.Fatalf("expected unknown-team error, got %v", err)
	}
}

func TestParseRejectsEmptyTable(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("")); err == nil {
		t.Fatal("expected error for a table with no teams")
	}
}

func TestParseRejectsTeamWithoutID(t *testing.T) {
	t.Parallel()

	raw := []byte(`
[[teams]]
name = "Nameless"
channel = "#nameless"
`)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for a team without an id")
	}
}
