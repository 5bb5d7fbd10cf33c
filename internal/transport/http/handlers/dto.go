package handlers

import "github.com/pribylovaa/club-auth/internal/models"

// LoginRequest — код авторизации внешнего провайдера.
type LoginRequest struct {
	Code string `json:"code"`
}

// SignupRequest — код провайдера и выбранный никнейм.
type SignupRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

// SessionResponse — ответ login/signup; токены в заголовке и cookie.
type SessionResponse struct {
	UserID       string `json:"user_id"`
	IsNewAccount bool   `json:"is_new_account"`
}

// RefreshResponse — ответ refresh.
type RefreshResponse struct {
	Rotated bool `json:"rotated"`
}

// MeResponse — текущий пользователь.
type MeResponse struct {
	UserID   string `json:"user_id"`
	Subject  string `json:"subject"`
	Role     string `json:"role"`
	Nickname string `json:"nickname"`
}

func meFromUser(u *models.User) MeResponse {
	return MeResponse{
		UserID:   u.ID.String(),
		Subject:  u.Subject,
		Role:     u.Role,
		Nickname: u.Nickname,
	}
}
