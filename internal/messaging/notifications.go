package messaging

import (
	"context"
	"net/http"
	"net/url"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// GetMessageNotifications returns one page of the caller's notification inbox.
func (c *Client) GetMessageNotifications(ctx context.Context, skip, limit int) (*model.NotificationList, error) {
	query, err := page(skip, limit)
	if err != nil {
		return nil, err
	}

	var resp model.NotificationList
	err = c.do(ctx, call{
		name:   "get_message_notifications",
		method: http.MethodGet,
		path:   basePath + "/notifications",
		query:  query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Notifications == nil {
		resp.Notifications = []model.Notification{}
	}
	return &resp, nil
}

// MarkMessageNotificationAsRead marks one notification read. Repeating it is
// not an error.
func (c *Client) MarkMessageNotificationAsRead(ctx context.Context, notificationID string) (*model.ActionResponse, error) {
	if err := requireID("notification", notificationID); err != nil {
		return nil, err
	}
	var resp model.ActionResponse
	err := c.do(ctx, call{
		name:   "mark_notification_read",
		method: http.MethodPut,
		path:   basePath + "/notifications/" + url.PathEscape(notificationID) + "/read",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnreadCount is a best-effort badge count. Err is set when the count could
// not be fetched; Count is then zero.
type UnreadCount struct {
	Count int
	Err   error
}

// Available reports whether Count came from the server.
func (u UnreadCount) Available() bool {
	return u.Err == nil
}

// UnreadNotificationCount fetches a single notification page and reports its
// unread_count. It never fails; failures are carried in the result.
func (c *Client) UnreadNotificationCount(ctx context.Context) UnreadCount {
	list, err := c.GetMessageNotifications(ctx, 0, 1)
	if err != nil {
		return UnreadCount{Err: err}
	}
	return UnreadCount{Count: list.UnreadCount}
}

// GetUnreadMessageNotificationCount is UnreadNotificationCount reduced to a
// plain number: zero when the count is unavailable.
func (c *Client) GetUnreadMessageNotificationCount(ctx context.Context) int {
	return c.UnreadNotificationCount(ctx).Count
}
