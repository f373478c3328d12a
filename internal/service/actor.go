package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// Actor is the authenticated principal a service call runs on behalf of.
type Actor struct {
	ID     uint
	Name   string
	Roles  []models.Role
	System bool
}

// SystemActor is used by scheduled jobs.
func SystemActor() Actor {
	return Actor{Name: "system", System: true}
}

// NewActor builds an actor from a loaded user row.
func NewActor(user models.User) Actor {
	return Actor{ID: user.ID, Name: user.DisplayName(), Roles: user.RoleList()}
}

// Has reports whether the actor holds role.
func (a Actor) Has(role models.Role) bool {
	for _, held := range a.Roles {
		if held == role {
			return true
		}
	}
	return false
}

// HasAny reports whether the actor holds at least one of roles.
func (a Actor) HasAny(roles ...models.Role) bool {
	for _, role := range roles {
		if a.Has(role) {
			return true
		}
	}
	return false
}

func requireRole(actor Actor, roles ...models.Role) error {
	if actor.HasAny(roles...) {
		return nil
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return fmt.Errorf("%w: requires role %s", ErrPermission, strings.Join(names, " or "))
}
