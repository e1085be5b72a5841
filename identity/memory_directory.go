package identity

import (
	"context"
	"sort"
	"sync"

	"kpitracker/apperrors"
	"kpitracker/models"
)

// MemoryDirectory is a process-local user registry for local runs without
// identity provider credentials.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[string]models.IdentityRecord
	revoked map[string]int
}

func NewMemoryDirectory(users ...models.IdentityRecord) *MemoryDirectory {
	d := &MemoryDirectory{
		users:   make(map[string]models.IdentityRecord, len(users)),
		revoked: map[string]int{},
	}
	for _, u := range users {
		d.users[u.UID] = u
	}
	return d
}

func (d *MemoryDirectory) SetRole(ctx context.Context, uid string, role models.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[uid]
	if !ok {
		return apperrors.NotFound("user %s not found", uid)
	}
	user.Role = role
	d.users[uid] = user
	return nil
}

func (d *MemoryDirectory) RevokeSessions(ctx context.Context, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[uid]; !ok {
		return apperrors.NotFound("user %s not found", uid)
	}
	d.revoked[uid]++
	return nil
}

func (d *MemoryDirectory) ListUsers(ctx context.Context, limit int) ([]models.IdentityRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := make([]models.IdentityRecord, 0, len(d.users))
	for _, u := range d.users {
		if u.Role == "" {
			u.Role = models.RoleUdyamMitra
		}
		records = append(records, u)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UID < records[j].UID })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Role returns uid's current role claim.
func (d *MemoryDirectory) Role(uid string) (models.Role, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[uid]
	return models.RoleOrDefault(string(user.Role)), ok
}

// Revocations counts how often uid's sessions were revoked.
func (d *MemoryDirectory) Revocations(uid string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revoked[uid]
}
