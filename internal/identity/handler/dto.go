package handler

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/identity/service"
	sessiondomain "truledgr/backend/internal/session/domain"
	sessionhandler "truledgr/backend/internal/session/handler"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.RefreshToken, validation.Required))
}

type startImpersonationRequest struct {
	TargetUserID string `json:"target_user_id"`
	Reason       string `json:"reason"`
}

func (r startImpersonationRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.TargetUserID, validation.Required))
}

type endImpersonationRequest struct {
	ImpersonationSessionID string `json:"impersonation_session_id"`
}

func (r endImpersonationRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.ImpersonationSessionID, validation.Required))
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func newTokenResponse(p *service.TokenPair, now time.Time) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn(now),
		UserID:       p.UserID,
	}
}

type impersonationTokenResponse struct {
	AccessToken            string    `json:"access_token"`
	RefreshToken           string    `json:"refresh_token"`
	TokenType              string    `json:"token_type"`
	ExpiresIn              int       `json:"expires_in"`
	TargetUserID           string    `json:"target_user_id"`
	AdminUserID            string    `json:"admin_user_id"`
	ImpersonationSessionID string    `json:"impersonation_session_id"`
	ExpiresAt              time.Time `json:"expires_at"`
}

type impersonationSummary struct {
	ID             string     `json:"id"`
	AdminUserID    string     `json:"admin_user_id"`
	AdminUsername  string     `json:"admin_username"`
	TargetUserID   string     `json:"target_user_id"`
	TargetUsername string     `json:"target_username"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

func newImpersonationSummary(s *sessiondomain.ImpersonationSummary) impersonationSummary {
	return impersonationSummary{
		ID:             s.ID,
		AdminUserID:    s.AdminUserID,
		AdminUsername:  s.AdminUsername,
		TargetUserID:   s.TargetUserID,
		TargetUsername: s.TargetUsername,
		Reason:         s.Reason,
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		EndedAt:        s.EndedAt,
	}
}

type impersonationInfo struct {
	AdminUserID   string    `json:"admin_user_id"`
	AdminUsername string    `json:"admin_username"`
	SessionID     string    `json:"session_id"`
	Reason        string    `json:"reason,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type whoamiResponse struct {
	UserID          string             `json:"user_id"`
	Username        string             `json:"username"`
	Email           string             `json:"email"`
	IsAdmin         bool               `json:"is_admin"`
	IsImpersonating bool               `json:"is_impersonating"`
	Impersonation   *impersonationInfo `json:"impersonation,omitempty"`
}

type userProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type linkedAccount struct {
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type meResponse struct {
	User           userProfile                     `json:"user"`
	Sessions       []sessionhandler.SessionSummary `json:"sessions"`
	LinkedAccounts []linkedAccount                 `json:"linked_accounts"`
	Impersonation  *impersonationInfo              `json:"impersonation,omitempty"`
}

func newLinkedAccounts(list []*identitydomain.LinkedAccount) []linkedAccount {
	out := make([]linkedAccount, 0, len(list))
	for _, a := range list {
		out = append(out, linkedAccount{
			Provider:       string(a.Provider),
			ProviderUserID: a.ProviderUserID,
			Email:          a.Email,
			CreatedAt:      a.CreatedAt,
		})
	}
	return out
}

type messageResponse struct {
	Message string `json:"message"`
}
