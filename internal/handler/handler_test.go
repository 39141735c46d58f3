package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academy-platform/dashboard-messaging/internal/auth"
	"github.com/academy-platform/dashboard-messaging/internal/messaging"
	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

const testSecret = "handler-test-secret"

type testAPI struct {
	server    *httptest.Server
	directory *service.Directory
	messages  *service.MessageService
	hub       *service.Hub
}

func newTestAPI(t *testing.T, devTokens bool) *testAPI {
	t.Helper()
	dir := service.NewDirectory()
	require.NoError(t, service.SeedDirectory(dir))
	hub := service.NewHub()
	svc := service.NewMessageService(dir, hub, nil)

	router := NewRouter(RouterConfig{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		DevTokens: devTokens,
	}, Deps{
		Messages:  svc,
		Directory: dir,
		Hub:       hub,
		Logger:    logger.NewNop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, directory: dir, messages: svc, hub: hub}
}

func (a *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	u, ok := a.directory.User(userID)
	require.True(t, ok)
	token, err := auth.IssueToken(testSecret, u.ID, u.Role, u.BranchID, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *testAPI) client(t *testing.T, userID string) *messaging.Client {
	t.Helper()
	return messaging.NewClient(a.server.URL, auth.Static(a.token(t, userID)))
}

func (a *testAPI) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMessagingRoundTrip(t *testing.T) {
	api := newTestAPI(t, false)
	ctx := context.Background()
	student := api.client(t, "student-downtown-1")
	coach := api.client(t, "coach-downtown-1")

	sent, err := student.SendMessage(ctx, model.SendMessageRequest{
		RecipientID:   "coach-downtown-1",
		RecipientType: model.RoleCoach,
		Subject:       "Belt grading",
		Content:       "Am I ready?",
		Priority:      model.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "Message sent successfully", sent.Message)

	reply, err := coach.SendMessage(ctx, model.SendMessageRequest{
		RecipientID:      "student-downtown-1",
		RecipientType:    model.RoleStudent,
		Subject:          "Re: Belt grading",
		Content:          "Nearly.",
		ReplyToMessageID: sent.MessageID,
	})
	require.NoError(t, err)
	assert.Equal(t, sent.ThreadID, reply.ThreadID)

	convs, err := coach.GetConversations(ctx, 0, 20)
	require.NoError(t, err)
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, "Belt grading", convs.Conversations[0].Subject)
	assert.Equal(t, 1, convs.Conversations[0].UnreadCount)

	thread, err := student.GetThreadMessages(ctx, sent.ThreadID, 0, 20)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, sent.MessageID, thread.Messages[0].ID)
	assert.Equal(t, reply.MessageID, thread.Messages[1].ID)
	assert.True(t, thread.Messages[1].IsReply)

	first, err := coach.MarkMessageAsRead(ctx, sent.MessageID)
	require.NoError(t, err)
	second, err := coach.MarkMessageAsRead(ctx, sent.MessageID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats, err := coach.GetMessageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 0, stats.UnreadMessages)

	assert.Equal(t, 1, coach.GetUnreadMessageNotificationCount(ctx))
	notes, err := coach.GetMessageNotifications(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, notes.Notifications, 1)
	_, err = coach.MarkMessageNotificationAsRead(ctx, notes.Notifications[0].ID)
	require.NoError(t, err)
	count := coach.UnreadNotificationCount(ctx)
	assert.True(t, count.Available())
	assert.Equal(t, 0, count.Count)
}

func TestErrorStatusesReachClientTaxonomy(t *testing.T) {
	api := newTestAPI(t, false)
	ctx := context.Background()
	student := api.client(t, "student-downtown-1")
	coach := api.client(t, "coach-downtown-1")

	sent, err := student.SendMessage(ctx, model.SendMessageRequest{
		RecipientID:   "coach-downtown-1",
		RecipientType: model.RoleCoach,
		Subject:       "Hello",
		Content:       "Hi coach",
	})
	require.NoError(t, err)

	// Only the recipient may mark read.
	_, err = student.MarkMessageAsRead(ctx, sent.MessageID)
	var authErr *messaging.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)

	_, err = coach.ArchiveMessage(ctx, sent.MessageID)
	require.NoError(t, err)
	back := model.StatusRead
	_, err = coach.UpdateMessage(ctx, sent.MessageID, model.MessageUpdate{Status: &back})
	var reqErr *messaging.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusConflict, reqErr.StatusCode)

	_, err = coach.DeleteMessage(ctx, "0190b0c4-0000-7000-8000-000000000000")
	require.True(t, errors.As(err, &reqErr))
	assert.True(t, reqErr.NotFound())

	outsider := api.client(t, "student-downtown-2")
	_, err = outsider.GetThreadMessages(ctx, sent.ThreadID, 0, 20)
	assert.True(t, messaging.IsAuth(err))

	_, err = student.SendMessage(ctx, model.SendMessageRequest{
		RecipientID:   "coach-riverside-1",
		RecipientType: model.RoleCoach,
		Subject:       "Hello",
		Content:       "Other branch",
	})
	assert.True(t, messaging.IsAuth(err))

	anonymous := messaging.NewClient(api.server.URL, auth.Static(""))
	_, err = anonymous.GetConversations(ctx, 0, 20)
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "missing authorization header", authErr.Detail)
}

func TestDirectoryEndpoints(t *testing.T) {
	api := newTestAPI(t, false)
	ctx := context.Background()
	admin := api.client(t, "superadmin-1")

	coaches, err := admin.GetMessageableCoaches(ctx, "branch-riverside")
	require.NoError(t, err)
	require.Len(t, coaches.Recipients, 1)
	assert.Equal(t, "coach-riverside-1", coaches.Recipients[0].ID)
	assert.Equal(t, 1, coaches.TotalCount)

	student := api.client(t, "student-downtown-1")
	students, err := student.GetMessageableStudents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, students.Recipients)

	managers, err := student.GetMessageableBranchManagers(ctx)
	require.NoError(t, err)
	require.Len(t, managers.Recipients, 1)
	assert.Equal(t, "manager-downtown", managers.Recipients[0].ID)

	admins, err := student.GetMessageableSuperadmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins.Recipients, 1)

	all, err := student.GetAvailableRecipients(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Recipients, 4)
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t, false)
	token := api.token(t, "coach-downtown-1")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"negative skip", "/api/messages/conversations?skip=-1", token, http.StatusBadRequest},
		{"limit too large", "/api/messages/notifications?limit=500", token, http.StatusBadRequest},
		{"malformed thread id", "/api/messages/thread/not-a-uuid/messages", token, http.StatusBadRequest},
		{"unknown thread", "/api/messages/thread/0190b0c4-0000-7000-8000-000000000000/messages", token, http.StatusNotFound},
		{"no token", "/api/messages/stats", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.get(t, tt.path, tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestUnknownUserIsUnauthorized(t *testing.T) {
	api := newTestAPI(t, false)
	token, err := auth.IssueToken(testSecret, "ghost", model.RoleCoach, "branch-downtown", time.Hour)
	require.NoError(t, err)

	resp := api.get(t, "/api/messages/stats", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A valid user presenting the wrong role is rejected too.
	token, err = auth.IssueToken(testSecret, "student-downtown-1", model.RoleSuperadmin, "", time.Hour)
	require.NoError(t, err)
	resp = api.get(t, "/api/messages/stats", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDevTokens(t *testing.T) {
	disabled := newTestAPI(t, false)
	assert.Equal(t, http.StatusNotFound, disabled.get(t, "/dev/tokens", "").StatusCode)

	api := newTestAPI(t, true)
	resp := api.get(t, "/dev/tokens", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tokens []DevToken `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Tokens)

	claims, err := auth.ParseToken(testSecret, body.Tokens[0].Token)
	require.NoError(t, err)
	assert.Equal(t, body.Tokens[0].UserID, claims.Subject)
	assert.Equal(t, body.Tokens[0].Role, claims.Role)
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, false)

	assert.Equal(t, http.StatusOK, api.get(t, "/health", "").StatusCode)

	resp := api.get(t, "/ready", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "disabled", body["nats"])
}

type sseReader struct {
	t      *testing.T
	reader *bufio.Reader
}

func (a *testAPI) openStream(t *testing.T, userID string) *sseReader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/api/messages/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return &sseReader{t: t, reader: bufio.NewReader(resp.Body)}
}

func (s *sseReader) next() (string, string) {
	s.t.Helper()
	var event, data string
	for {
		line, err := s.reader.ReadString('\n')
		require.NoError(s.t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func (s *sseReader) notification() model.NotificationEvent {
	s.t.Helper()
	event, data := s.next()
	require.Equal(s.t, "notification", event)
	var got model.NotificationEvent
	require.NoError(s.t, json.Unmarshal([]byte(data), &got))
	return got
}

func (a *testAPI) sendToCoach(t *testing.T, subject string) *model.SendMessageResponse {
	t.Helper()
	sent, err := a.client(t, "student-downtown-1").SendMessage(context.Background(), model.SendMessageRequest{
		RecipientID:   "coach-downtown-1",
		RecipientType: model.RoleCoach,
		Subject:       subject,
		Content:       "Are you there?",
	})
	require.NoError(t, err)
	return sent
}

func TestNotificationStream(t *testing.T) {
	api := newTestAPI(t, false)
	stream := api.openStream(t, "coach-downtown-1")

	event, _ := stream.next()
	assert.Equal(t, "connected", event)
	event, data := stream.next()
	assert.Equal(t, "replay_complete", event)
	assert.JSONEq(t, `{"unread_count":0,"replayed":0}`, data)

	sent := api.sendToCoach(t, "Live")

	got := stream.notification()
	assert.Equal(t, model.EventNotificationCreated, got.Type)
	assert.Equal(t, sent.MessageID, got.Notification.MessageID)
}

func TestNotificationStreamReplaysOldestFirst(t *testing.T) {
	api := newTestAPI(t, false)
	api.sendToCoach(t, "first")
	api.sendToCoach(t, "second")
	read := api.sendToCoach(t, "already read")
	_, err := api.client(t, "coach-downtown-1").MarkMessageAsRead(context.Background(), read.MessageID)
	require.NoError(t, err)
	notes, err := api.client(t, "coach-downtown-1").GetMessageNotifications(context.Background(), 0, 1)
	require.NoError(t, err)
	_, err = api.client(t, "coach-downtown-1").MarkMessageNotificationAsRead(context.Background(), notes.Notifications[0].ID)
	require.NoError(t, err)

	stream := api.openStream(t, "coach-downtown-1")
	event, _ := stream.next()
	require.Equal(t, "connected", event)

	var subjects []string
	for i := 0; i < 2; i++ {
		subjects = append(subjects, stream.notification().Notification.Subject)
	}
	assert.Equal(t, []string{"first", "second"}, subjects)

	event, data := stream.next()
	assert.Equal(t, "replay_complete", event)
	assert.JSONEq(t, `{"unread_count":2,"replayed":2}`, data)
}

func TestNotificationStreamSkipsReplayedLiveEvents(t *testing.T) {
	api := newTestAPI(t, false)
	api.sendToCoach(t, "before")

	stream := api.openStream(t, "coach-downtown-1")
	event, _ := stream.next()
	require.Equal(t, "connected", event)
	replayed := stream.notification()
	require.Equal(t, "before", replayed.Notification.Subject)
	event, _ = stream.next()
	require.Equal(t, "replay_complete", event)

	// The same notification arriving on the live side, as it does when it is
	// created between subscribing and the replay snapshot.
	require.NoError(t, api.hub.PublishNotification(context.Background(), &model.NotificationEvent{
		Type:         model.EventNotificationCreated,
		Notification: replayed.Notification,
		PublishedAt:  replayed.PublishedAt,
	}))
	api.sendToCoach(t, "after")

	got := stream.notification()
	assert.Equal(t, "after", got.Notification.Subject)
}
