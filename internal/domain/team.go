package domain

// TeamID identifies a support team in the routing registry. Triggers and
// assignments carry this identifier, never a prose team name.
type TeamID string

const (
	TeamNetwork        TeamID = "network"
	TeamSecurity       TeamID = "security"
	TeamHardware       TeamID = "hardware"
	TeamSoftware       TeamID = "software"
	TeamAccess         TeamID = "access"
	TeamInfrastructure TeamID = "infrastructure"
	TeamGeneral        TeamID = "general"
)
