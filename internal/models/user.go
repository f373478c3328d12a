package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role names a capability a user may hold. A user can hold several at once.
type Role string

const (
	RoleTeacher    Role = "teacher"
	RoleResearcher Role = "researcher"
	RoleOperator   Role = "operator"
	RoleAdmin      Role = "admin"
)

// AllRoles lists every supported role.
var AllRoles = []Role{RoleTeacher, RoleResearcher, RoleOperator, RoleAdmin}

// User is an operator of the back office: teacher, researcher, operations staff or admin.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:150;uniqueIndex;not null" json:"username"`
	RealName  string         `gorm:"size:50" json:"real_name"`
	Phone     string         `gorm:"size:20" json:"phone"`
	Roles     datatypes.JSON `gorm:"type:json" json:"-"`
	IsActive  bool           `gorm:"not null" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ParseRole validates a role name.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range AllRoles {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// NormalizeRoles validates and de-duplicates role names, returning them sorted.
func NormalizeRoles(values []string) ([]Role, error) {
	seen := make(map[Role]struct{}, len(values))
	roles := make([]Role, 0, len(values))
	for _, value := range values {
		role, err := ParseRole(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

// SetRoles serializes the role set into the JSON column.
func (u *User) SetRoles(roles []Role) {
	if roles == nil {
		roles = []Role{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		u.Roles = datatypes.JSON([]byte("[]"))
		return
	}
	u.Roles = datatypes.JSON(data)
}

// RoleList deserializes the stored role set.
func (u User) RoleList() []Role {
	if len(u.Roles) == 0 {
		return nil
	}
	var roles []Role
	if err := json.Unmarshal(u.Roles, &roles); err != nil {
		return nil
	}
	return roles
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role Role) bool {
	for _, held := range u.RoleList() {
		if held == role {
			return true
		}
	}
	return false
}

// DisplayName prefers the real name and falls back to the handle.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.RealName); name != "" {
		return name
	}
	return u.Username
}

// RoleFilterPattern is the LIKE pattern matching a role inside the JSON column.
func RoleFilterPattern(role Role) string {
	return `%"` + string(role) + `"%`
}
