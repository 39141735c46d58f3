package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

const basePath = "/api/messages"

// SendMessage creates a message. The recipient, subject and content are
// required; priority defaults on the server. Thread membership for replies is
// resolved by the server from whichever of ThreadID or ReplyToMessageID is set.
func (c *Client) SendMessage(ctx context.Context, req model.SendMessageRequest) (*model.SendMessageResponse, error) {
	switch {
	case strings.TrimSpace(req.RecipientID) == "":
		return nil, fmt.Errorf("%w: recipient_id is required", ErrInvalidArgument)
	case !req.RecipientType.Valid():
		return nil, fmt.Errorf("%w: recipient_type %q is not a role", ErrInvalidArgument, req.RecipientType)
	case strings.TrimSpace(req.Subject) == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidArgument)
	case strings.TrimSpace(req.Content) == "":
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	case req.Priority != "" && !req.Priority.Valid():
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidArgument, req.Priority)
	}

	var resp model.SendMessageResponse
	err := c.do(ctx, call{
		name:   "send_message",
		method: http.MethodPost,
		path:   basePath + "/send",
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConversations returns one page of the caller's conversations in the
// order the server sent them (most recent activity first).
func (c *Client) GetConversations(ctx context.Context, skip, limit int) (*model.ConversationList, error) {
	query, err := page(skip, limit)
	if err != nil {
		return nil, err
	}

	var resp model.ConversationList
	err = c.do(ctx, call{
		name:   "get_conversations",
		method: http.MethodGet,
		path:   basePath + "/conversations",
		query:  query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Conversations == nil {
		resp.Conversations = []model.Conversation{}
	}
	return &resp, nil
}

// GetThreadMessages returns one page of a thread in the order the server sent
// them (chronological). Callers that are not participants get an *AuthError.
func (c *Client) GetThreadMessages(ctx context.Context, threadID string, skip, limit int) (*model.ThreadMessages, error) {
	if err := requireID("thread", threadID); err != nil {
		return nil, err
	}
	query, err := page(skip, limit)
	if err != nil {
		return nil, err
	}

	var resp model.ThreadMessages
	err = c.do(ctx, call{
		name:   "get_thread_messages",
		method: http.MethodGet,
		path:   basePath + "/thread/" + url.PathEscape(threadID) + "/messages",
		query:  query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}
	return &resp, nil
}

// UpdateMessage applies a partial update. The server rejects backward status
// transitions; nothing is changed locally.
func (c *Client) UpdateMessage(ctx context.Context, messageID string, patch model.MessageUpdate) (*model.ActionResponse, error) {
	if err := requireID("message", messageID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: update has no fields", ErrInvalidArgument)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidArgument, *patch.Status)
	}

	return c.messageAction(ctx, call{
		name:   "update_message",
		method: http.MethodPatch,
		path:   messagePath(messageID),
		body:   patch,
	})
}

// MarkMessageAsRead marks a received message read. Repeating it is not an
// error.
func (c *Client) MarkMessageAsRead(ctx context.Context, messageID string) (*model.ActionResponse, error) {
	if err := requireID("message", messageID); err != nil {
		return nil, err
	}
	return c.messageAction(ctx, call{
		name:   "mark_message_read",
		method: http.MethodPost,
		path:   messagePath(messageID) + "/mark-read",
	})
}

// ArchiveMessage archives a message. Repeating it is not an error.
func (c *Client) ArchiveMessage(ctx context.Context, messageID string) (*model.ActionResponse, error) {
	if err := requireID("message", messageID); err != nil {
		return nil, err
	}
	return c.messageAction(ctx, call{
		name:   "archive_message",
		method: http.MethodPost,
		path:   messagePath(messageID) + "/archive",
	})
}

// DeleteMessage deletes a message. Repeating it is not an error.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (*model.ActionResponse, error) {
	if err := requireID("message", messageID); err != nil {
		return nil, err
	}
	return c.messageAction(ctx, call{
		name:   "delete_message",
		method: http.MethodDelete,
		path:   messagePath(messageID),
	})
}

// GetMessageStats returns the server's aggregate counts for the caller.
func (c *Client) GetMessageStats(ctx context.Context) (*model.MessageStats, error) {
	var resp model.MessageStats
	err := c.do(ctx, call{
		name:   "get_message_stats",
		method: http.MethodGet,
		path:   basePath + "/stats",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) messageAction(ctx context.Context, req call) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func messagePath(messageID string) string {
	return basePath + "/message/" + url.PathEscape(messageID)
}
