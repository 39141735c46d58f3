package handler

import (
	"net/http"

	"github.com/academy-platform/dashboard-messaging/internal/middleware"
	"github.com/academy-platform/dashboard-messaging/internal/model"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// DirectoryHandler serves the recipient directories.
type DirectoryHandler struct {
	directory *service.Directory
	logger    *logger.Logger
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(dir *service.Directory, log *logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directory: dir,
		logger:    log,
	}
}

// Recipients handles GET /api/messages/recipients
func (h *DirectoryHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "", false)
}

// Students handles GET /api/messages/students
func (h *DirectoryHandler) Students(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.RoleStudent, true)
}

// Coaches handles GET /api/messages/coaches
func (h *DirectoryHandler) Coaches(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.RoleCoach, true)
}

// BranchManagers handles GET /api/messages/branch-managers
func (h *DirectoryHandler) BranchManagers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.RoleBranchManager, false)
}

// Superadmins handles GET /api/messages/superadmins
func (h *DirectoryHandler) Superadmins(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.RoleSuperadmin, false)
}

func (h *DirectoryHandler) list(w http.ResponseWriter, r *http.Request, role model.Role, branchFilter bool) {
	user, ok := caller(w, r, h.directory)
	if !ok {
		return
	}

	var branchID string
	if branchFilter {
		branchID = r.URL.Query().Get("branch_id")
		if err := middleware.ValidateBranchID(branchID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	recipients := h.directory.Messageable(user, role, branchID)
	writeJSON(w, http.StatusOK, &model.RecipientList{
		Recipients: recipients,
		TotalCount: len(recipients),
	})
}
