package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// directoryPaths maps each role to its directory endpoint.
var directoryPaths = map[model.Role]string{
	model.RoleStudent:       basePath + "/students",
	model.RoleCoach:         basePath + "/coaches",
	model.RoleBranchManager: basePath + "/branch-managers",
	model.RoleSuperadmin:    basePath + "/superadmins",
}

// GetAvailableRecipients lists everyone the caller may message.
func (c *Client) GetAvailableRecipients(ctx context.Context) (*model.RecipientList, error) {
	return c.directory(ctx, "get_available_recipients", basePath+"/recipients", "")
}

// GetMessageableStudents lists students the caller may message, narrowed to
// one branch when branchID is non-empty.
func (c *Client) GetMessageableStudents(ctx context.Context, branchID string) (*model.RecipientList, error) {
	return c.directory(ctx, "get_messageable_students", directoryPaths[model.RoleStudent], branchID)
}

// GetMessageableCoaches lists coaches the caller may message, narrowed to one
// branch when branchID is non-empty.
func (c *Client) GetMessageableCoaches(ctx context.Context, branchID string) (*model.RecipientList, error) {
	return c.directory(ctx, "get_messageable_coaches", directoryPaths[model.RoleCoach], branchID)
}

// GetMessageableBranchManagers lists branch managers the caller may message.
func (c *Client) GetMessageableBranchManagers(ctx context.Context) (*model.RecipientList, error) {
	return c.directory(ctx, "get_messageable_branch_managers", directoryPaths[model.RoleBranchManager], "")
}

// GetMessageableSuperadmins lists superadmins the caller may message.
func (c *Client) GetMessageableSuperadmins(ctx context.Context) (*model.RecipientList, error) {
	return c.directory(ctx, "get_messageable_superadmins", directoryPaths[model.RoleSuperadmin], "")
}

// GetMessageable dispatches to the directory of the given role. The branch
// filter only applies to students and coaches.
func (c *Client) GetMessageable(ctx context.Context, role model.Role, branchID string) (*model.RecipientList, error) {
	switch role {
	case model.RoleStudent:
		return c.GetMessageableStudents(ctx, branchID)
	case model.RoleCoach:
		return c.GetMessageableCoaches(ctx, branchID)
	case model.RoleBranchManager:
		return c.GetMessageableBranchManagers(ctx)
	case model.RoleSuperadmin:
		return c.GetMessageableSuperadmins(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
}

func (c *Client) directory(ctx context.Context, name, path, branchID string) (*model.RecipientList, error) {
	var query url.Values
	if branchID = strings.TrimSpace(branchID); branchID != "" {
		query = url.Values{"branch_id": []string{branchID}}
	}

	var resp model.RecipientList
	err := c.do(ctx, call{
		name:   name,
		method: http.MethodGet,
		path:   path,
		query:  query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Recipients == nil {
		resp.Recipients = []model.Recipient{}
	}
	return &resp, nil
}
