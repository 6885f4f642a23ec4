package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/model"
	"github.com/hitoshi/serif/internal/optimistic"
)

// APIHandler はプロフィール状態のJSON APIハンドラー。
type APIHandler struct {
	profiles ProfileFetcher
	registry *optimistic.Registry
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(profiles ProfileFetcher, registry *optimistic.Registry) *APIHandler {
	return &APIHandler{
		profiles: profiles,
		registry: registry,
	}
}

// profileSnapshotResponse はコントローラ状態のJSON表現。
type profileSnapshotResponse struct {
	FirstName string `json:"first_name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	Phase     string `json:"phase"`
	InFlight  int    `json:"in_flight"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// profileUpdateRequest は部分更新リクエストのJSONボディ。
// nilのフィールドは「変更しない」を意味する。emailフィールドは存在しない。
type profileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	AvatarURL *string `json:"avatar_url"`
}

// GetProfile は現在のコントローラ状態のスナップショットを返す。
// GET /api/profile
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	controller, ok := h.resolveController(w, r, userID)
	if !ok {
		return
	}

	writeSnapshot(w, http.StatusOK, controller.Snapshot())
}

// UpdateProfile は部分更新をコントローラへ送信する。
// PATCH /api/profile
// コントローラは表示値を即時更新してストア書き込みを非同期に開始するため、
// 202 Acceptedと送信直後のスナップショットを返す。
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "Check the request format and try again.",
		})
		return
	}

	controller, ok := h.resolveController(w, r, userID)
	if !ok {
		return
	}

	controller.Submit(model.ProfilePartial{
		FirstName: req.FirstName,
		AvatarURL: req.AvatarURL,
	})

	writeSnapshot(w, http.StatusAccepted, controller.Snapshot())
}

// resolveController はユーザーのコントローラを取得または生成する。
// プロフィールが取得できない場合は404を書き込みfalseを返す。
func (h *APIHandler) resolveController(w http.ResponseWriter, r *http.Request, userID string) (*optimistic.Controller, bool) {
	controller := h.registry.Get(userID)
	if controller != nil {
		return controller, true
	}

	profile := h.profiles.Fetch(r.Context(), userID)
	if profile == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError())
		return nil, false
	}

	return h.registry.GetOrCreate(userID, *profile), true
}

// writeSnapshot はスナップショットをJSONで書き込む。
func writeSnapshot(w http.ResponseWriter, statusCode int, snap optimistic.Snapshot) {
	resp := profileSnapshotResponse{
		Phase:     string(snap.Phase),
		InFlight:  snap.InFlight,
		LastError: snap.LastError,
		UpdatedAt: snap.Profile.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if snap.Profile.FirstName != nil {
		resp.FirstName = *snap.Profile.FirstName
	}
	if snap.Profile.AvatarURL != nil {
		resp.AvatarURL = *snap.Profile.AvatarURL
	}
	if snap.Profile.Email != nil {
		resp.Email = *snap.Profile.Email
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
