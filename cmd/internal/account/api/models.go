package accountapi

import (
	"time"

	"warden/cmd/internal/account"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type resultResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toResultResponse(res account.Result) resultResponse {
	out := resultResponse{
		Status:  string(res.Status),
		Message: res.Message,
		Token:   res.Token,
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt.UTC()
		out.ExpiresAt = &exp
	}
	return out
}
