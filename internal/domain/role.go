package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of member roles.
type Role string

const (
	RoleMember Role = "member"
	RoleLeader Role = "leader"
	RolePastor Role = "pastor"
	RoleAdmin  Role = "admin"
)

type Capability string

const (
	CapRegisterForEvents Capability = "events:register"
	CapManageEvents      Capability = "events:manage"
	CapViewDonations     Capability = "donations:view"
	CapManageMembers     Capability = "members:manage"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleMember: {
		CapRegisterForEvents: true,
	},
	RoleLeader: {
		CapRegisterForEvents: true,
		CapManageEvents:      true,
	},
	RolePastor: {
		CapRegisterForEvents: true,
		CapManageEvents:      true,
		CapViewDonations:     true,
	},
	RoleAdmin: {
		CapRegisterForEvents: true,
		CapManageEvents:      true,
		CapViewDonations:     true,
		CapManageMembers:     true,
	},
}

// ParseRole accepts any casing. Unknown roles are an error, not a silent member.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleCapabilities[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}
