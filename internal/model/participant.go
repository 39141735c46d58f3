// Package model defines data structures for academy messaging.
package model

import "fmt"

// Role identifies the kind of dashboard user on either side of a message.
type Role string

const (
	RoleStudent       Role = "student"
	RoleCoach         Role = "coach"
	RoleBranchManager Role = "branch_manager"
	RoleSuperadmin    Role = "superadmin"
)

// Roles lists every role in directory order.
var Roles = []Role{RoleStudent, RoleCoach, RoleBranchManager, RoleSuperadmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCoach, RoleBranchManager, RoleSuperadmin:
		return true
	}
	return false
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q, want one of %v", s, Roles)
	}
	return r, nil
}

// Participant identifies one side of a conversation.
type Participant struct {
	UserID    string  `json:"user_id"`
	UserType  Role    `json:"user_type"`
	UserName  string  `json:"user_name"`
	UserEmail string  `json:"user_email"`
	BranchID  *string `json:"branch_id,omitempty"`
}

// Recipient is a directory entry the caller is permitted to message.
type Recipient struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Type       Role    `json:"type"`
	BranchID   *string `json:"branch_id,omitempty"`
	BranchName *string `json:"branch_name,omitempty"`
}

// RecipientList is the response of every directory query.
type RecipientList struct {
	Recipients []Recipient `json:"recipients"`
	TotalCount int         `json:"total_count"`
}
