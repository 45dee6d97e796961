package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"cellarledger/internal/repositories"

	"github.com/google/uuid"
)

// Permissions is an in-process repositories.PermissionRepository.
type Permissions struct {
	mu        sync.RWMutex
	roles     map[string]uuid.UUID
	rolePerms map[uuid.UUID][]string
	userRoles map[uuid.UUID][]uuid.UUID
}

func NewPermissions() *Permissions {
	return &Permissions{
		roles:     make(map[string]uuid.UUID),
		rolePerms: make(map[uuid.UUID][]string),
		userRoles: make(map[uuid.UUID][]uuid.UUID),
	}
}

var _ repositories.PermissionRepository = (*Permissions)(nil)

func (p *Permissions) UserHasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	perms, _ := p.ListForUser(ctx, userID)
	return slices.Contains(perms, permission), nil
}

func (p *Permissions) ListForUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := make(map[string]struct{})
	for _, roleID := range p.userRoles[userID] {
		for _, name := range p.rolePerms[roleID] {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *Permissions) EnsureRole(_ context.Context, roleName string, permissions []string) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roleID, ok := p.roles[roleName]
	if !ok {
		roleID = uuid.New()
		p.roles[roleName] = roleID
	}
	for _, name := range permissions {
		if !slices.Contains(p.rolePerms[roleID], name) {
			p.rolePerms[roleID] = append(p.rolePerms[roleID], name)
		}
	}
	return roleID, nil
}

func (p *Permissions) AssignRole(_ context.Context, userID, roleID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !slices.Contains(p.userRoles[userID], roleID) {
		p.userRoles[userID] = append(p.userRoles[userID], roleID)
	}
	return nil
}
