package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/auth"
	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// DevHandler exposes helpers for local development only.
type DevHandler struct {
	directory *service.Directory
	secret    string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewDevHandler creates a new development handler.
func NewDevHandler(dir *service.Directory, secret string, ttl time.Duration, log *logger.Logger) *DevHandler {
	return &DevHandler{
		directory: dir,
		secret:    secret,
		ttl:       ttl,
		logger:    log,
	}
}

// DevToken is a signed bearer token for one directory user.
type DevToken struct {
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	BranchID  string     `json:"branch_id,omitempty"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Tokens handles GET /dev/tokens
func (h *DevHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	users := h.directory.Users()
	tokens := make([]DevToken, 0, len(users))
	expiresAt := time.Now().Add(h.ttl).UTC().Truncate(time.Second)

	for _, u := range users {
		token, err := auth.IssueToken(h.secret, u.ID, u.Role, u.BranchID, h.ttl)
		if err != nil {
			h.logger.Error("failed to issue dev token", zap.String("user_id", u.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to issue tokens")
			return
		}
		tokens = append(tokens, DevToken{
			UserID:    u.ID,
			Name:      u.Name,
			Role:      u.Role,
			BranchID:  u.BranchID,
			Token:     token,
			ExpiresAt: expiresAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
	})
}
