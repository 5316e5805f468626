package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tasky/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetUserData(ctx context.Context, userID string) (*user.Profile, error)
	ChoosePet(ctx context.Context, userID, pet string) (string, error)
}

// UserHandler はプロフィール操作のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type userDataJSON struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	IsAccountVerified bool      `json:"isAccountVerified"`
	Pet               string    `json:"pet"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type userDataResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	UserData userDataJSON `json:"userData"`
}

type choosePetRequest struct {
	Pet string `json:"pet"`
}

type choosePetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Pet     string `json:"pet"`
}

// GetUserData は認証済みアカウントのプロフィールを返す。
// GET /api/user/data
func (h *UserHandler) GetUserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetUserData(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userDataResponse{
		Success: true,
		Message: "User found",
		UserData: userDataJSON{
			ID:                profile.ID,
			Name:              profile.Name,
			Email:             profile.Email,
			IsAccountVerified: profile.IsAccountVerified,
			Pet:               profile.Pet,
			CreatedAt:         profile.CreatedAt,
			UpdatedAt:         profile.UpdatedAt,
		},
	})
}

// ChoosePet はコンパニオンを設定する。
// POST /api/user/choose-pet
func (h *UserHandler) ChoosePet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req choosePetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pet, err := h.service.ChoosePet(r.Context(), userID, req.Pet)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, choosePetResponse{Success: true, Message: "Pet saved", Pet: pet})
}
