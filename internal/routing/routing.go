package routing

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// Team describes one support team and its notification channel.
type Team struct {
	ID      domain.TeamID `toml:"id"`
	Name    string        `toml:"name"`
	Channel string        `toml:"channel"`
}

// Table resolves escalation triggers and ticket categories to teams. Lookups
// prefer a trigger-specific mapping, then the category mapping, then the
// general team.
type Table struct {
	teams      map[domain.TeamID]Team
	byCategory map[domain.TicketCategory]domain.TeamID
	byTrigger  map[domain.TriggerType]domain.TeamID
}

type tableFile struct {
	Teams      []Team            `toml:"teams"`
	Categories map[string]string `toml:"categories"`
	Triggers   map[string]string `toml:"triggers"`
}

// Default returns the built-in seven-team table.
func Default() *Table {
	return &Table{
		teams: map[domain.TeamID]Team{
			domain.TeamNetwork:        {ID: domain.TeamNetwork, Name: "Network Team", Channel: "#it-network-support"},
			domain.TeamSecurity:       {ID: domain.TeamSecurity, Name: "Security Team", Channel: "#it-security-support"},
			domain.TeamHardware:       {ID: domain.TeamHardware, Name: "Hardware Team", Channel: "#it-hardware-support"},
			domain.TeamSoftware:       {ID: domain.TeamSoftware, Name: "Software Team", Channel: "#it-software-support"},
			domain.TeamAccess:         {ID: domain.TeamAccess, Name: "Access Management", Channel: "#it-access-support"},
			domain.TeamInfrastructure: {ID: domain.TeamInfrastructure, Name: "Infrastructure Team", Channel: "#it-infrastructure-support"},
			domain.TeamGeneral:        {ID: domain.TeamGeneral, Name: "General IT Support", Channel: "#it-general-support"},
		},
		byCategory: map[domain.TicketCategory]domain.TeamID{
			domain.CategoryNetwork:       domain.TeamNetwork,
			domain.CategorySecurity:      domain.TeamSecurity,
			domain.CategoryHardware:      domain.TeamHardware,
			domain.CategorySoftware:      domain.TeamSoftware,
			domain.CategoryAccess:        domain.TeamAccess,
			domain.CategoryGeneral:       domain.TeamGeneral,
			domain.CategoryUncategorized: domain.TeamGeneral,
		},
		byTrigger: map[domain.TriggerType]domain.TeamID{
			domain.TriggerSecurityIssue: domain.TeamSecurity,
		},
	}
}

// Load reads a TOML routing table from path, or the built-in table when path
// is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table: %w", err)
	}
	return Parse(raw)
}

// Parse builds a table from TOML content and validates its references.
func Parse(raw []byte) (*Table, error) {
	var file tableFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse routing table: %w", err)
	}
	if len(file.Teams) == 0 {
		return nil, fmt.Errorf("routing table defines no teams")
	}

	table := &Table{
		teams:      make(map[domain.TeamID]Team, len(file.Teams)),
		byCategory: make(map[domain.TicketCategory]domain.TeamID, len(file.Categories)),
		byTrigger:  make(map[domain.TriggerType]domain.TeamID, len(file.Triggers)),
	}
	for _, team := range file.Teams {
		if team.ID == "" {
			return nil, fmt.Errorf("routing table team %q has no id", team.Name)
		}
		table.teams[team.ID] = team
	}
	if _, ok := table.teams[domain.TeamGeneral]; !ok {
		return nil, fmt.Errorf("routing table must define the %q fallback team", domain.TeamGeneral)
	}
	for category, teamID := range file.Categories {
		id := domain.TeamID(teamID)
		if _, ok := table.teams[id]; !ok {
			return nil, fmt.Errorf("category %q routes to unknown team %q", category, teamID)
		}
		table.byCategory[domain.TicketCategory(category)] = id
	}
	for trigger, teamID := range file.Triggers {
		id := domain.TeamID(teamID)
		if _, ok := table.teams[id]; !ok {
			return nil, fmt.Errorf("trigger %q routes to unknown team %q", trigger, teamID)
		}
		table.byTrigger[domain.TriggerType(trigger)] = id
	}
	return table, nil
}

// TeamFor resolves the owning team for a trigger raised against a ticket in
// the given category.
func (t *Table) TeamFor(trigger domain.TriggerType, category domain.TicketCategory) Team {
	if id, ok := t.byTrigger[trigger]; ok {
		if team, ok := t.teams[id]; ok {
			return team
		}
	}
	if id, ok := t.byCategory[category]; ok {
		if team, ok := t.teams[id]; ok {
			return team
		}
	}
	return t.teams[domain.TeamGeneral]
}

// TeamByCategory resolves the routing target for a category alone.
func (t *Table) TeamByCategory(category domain.TicketCategory) Team {
	if id, ok := t.byCategory[category]; ok {
		if team, ok := t.teams[id]; ok {
			return team
		}
	}
	return t.teams[domain.TeamGeneral]
}

// Team returns the team registered under id.
func (t *Table) Team(id domain.TeamID) (Team, bool) {
	team, ok := t.teams[id]
	return team, ok
}

// Teams lists every registered team.
func (t *Table) Teams() []Team {
	out := make([]Team, 0, len(t.teams))
	for _, team := range t.teams {
		out = append(out, team)
	}
	return out
}
