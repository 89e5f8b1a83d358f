package access

import "time"

// Capability roles. Every mutating vault/treasury/oracle entry point declares
// exactly one required role; asset ownership is checked from asset data instead.
const (
	RoleGovernance       = "governance"
	RoleAppraiser        = "appraiser"
	RoleCustodianManager = "custodian_manager"
	RoleEmergency        = "emergency"
	RoleTreasuryManager  = "treasury_manager"
	RoleCompliance       = "compliance"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleGovernance, RoleAppraiser, RoleCustodianManager, RoleEmergency, RoleTreasuryManager, RoleCompliance:
		return true
	default:
		return false
	}
}

type Account struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type AccountList struct {
	Items []Account `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}
