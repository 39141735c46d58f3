// Package service provides the business logic of the development messaging
// backend. State lives in memory.
package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// Errors returned by the services. Handlers map them to HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// User is a directory entry.
type User struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	BranchID string     `json:"branch_id,omitempty"`
}

// Branch is an academy location.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Directory holds the academy's users and branches.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]User
	branches map[string]Branch
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:    make(map[string]User),
		branches: make(map[string]Branch),
	}
}

// AddBranch registers a branch.
func (d *Directory) AddBranch(b Branch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.branches[b.ID] = b
}

// AddUser registers a user. Students, coaches and branch managers must
// belong to a known branch.
func (d *Directory) AddUser(u User) error {
	if u.ID == "" || u.Name == "" {
		return fmt.Errorf("%w: user id and name are required", ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidInput, u.Role)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if u.Role != model.RoleSuperadmin {
		if _, ok := d.branches[u.BranchID]; !ok {
			return fmt.Errorf("%w: unknown branch %q for user %s", ErrInvalidInput, u.BranchID, u.ID)
		}
	}
	d.users[u.ID] = u
	return nil
}

// User looks a user up by id.
func (d *Directory) User(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// Users returns every user ordered by role then name.
func (d *Directory) Users() []User {
	d.mu.RLock()
	users := make([]User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	d.mu.RUnlock()

	sortUsers(users)
	return users
}

// Messageable lists the recipients caller may message. An empty role means
// every role; a non-empty branchID narrows the result to that branch.
func (d *Directory) Messageable(caller User, role model.Role, branchID string) []model.Recipient {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var users []User
	for _, u := range d.users {
		if role != "" && u.Role != role {
			continue
		}
		if branchID != "" && u.BranchID != branchID {
			continue
		}
		if !CanMessage(caller, u) {
			continue
		}
		users = append(users, u)
	}
	sortUsers(users)

	recipients := make([]model.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, d.recipientLocked(u))
	}
	return recipients
}

// Participant converts a user to its conversation identity.
func (d *Directory) Participant(u User) model.Participant {
	p := model.Participant{
		UserID:    u.ID,
		UserType:  u.Role,
		UserName:  u.Name,
		UserEmail: u.Email,
	}
	if u.BranchID != "" {
		branchID := u.BranchID
		p.BranchID = &branchID
	}
	return p
}

func (d *Directory) recipientLocked(u User) model.Recipient {
	r := model.Recipient{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Type:  u.Role,
	}
	if u.BranchID != "" {
		branchID := u.BranchID
		r.BranchID = &branchID
		if b, ok := d.branches[u.BranchID]; ok {
			name := b.Name
			r.BranchName = &name
		}
	}
	return r
}

// CanMessage reports whether from may start or continue a conversation
// with to.
func CanMessage(from, to User) bool {
	if from.ID == to.ID {
		return false
	}
	if from.Role == model.RoleSuperadmin || to.Role == model.RoleSuperadmin {
		return true
	}

	sameBranch := from.BranchID != "" && from.BranchID == to.BranchID
	switch from.Role {
	case model.RoleBranchManager:
		return to.Role == model.RoleBranchManager || sameBranch
	case model.RoleCoach:
		return sameBranch
	case model.RoleStudent:
		return sameBranch && (to.Role == model.RoleCoach || to.Role == model.RoleBranchManager)
	}
	return false
}

var roleOrder = map[model.Role]int{
	model.RoleStudent:       0,
	model.RoleCoach:         1,
	model.RoleBranchManager: 2,
	model.RoleSuperadmin:    3,
}

func sortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Role != users[j].Role {
			return roleOrder[users[i].Role] < roleOrder[users[j].Role]
		}
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
}
