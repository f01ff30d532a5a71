package repository

import (
	"time"

	"truledgr/backend/internal/db/models"
	"truledgr/backend/internal/session/domain"
)

func sessionToDomain(m *models.Session) *domain.Session {
	return &domain.Session{
		ID:               m.ID,
		UserID:           m.UserID,
		SessionToken:     m.SessionToken,
		RefreshTokenHash: deref(m.RefreshTokenHash),
		Status:           domain.Status(m.Status),
		ExpiresAt:        m.ExpiresAt.UTC(),
		LastActivity:     m.LastActivity.UTC(),
		IPAddress:        deref(m.IPAddress),
		UserAgent:        deref(m.UserAgent),
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

func sessionToModel(s *domain.Session) *models.Session {
	return &models.Session{
		ID:               s.ID,
		UserID:           s.UserID,
		SessionToken:     s.SessionToken,
		RefreshTokenHash: ptr(s.RefreshTokenHash),
		Status:           string(s.Status),
		ExpiresAt:        s.ExpiresAt.UTC(),
		LastActivity:     s.LastActivity.UTC(),
		IPAddress:        ptr(s.IPAddress),
		UserAgent:        ptr(s.UserAgent),
		CreatedAt:        s.CreatedAt.UTC(),
	}
}

func impersonationToDomain(m *models.ImpersonationSession) *domain.ImpersonationSession {
	var ended *time.Time
	if m.EndedAt != nil {
		t := m.EndedAt.UTC()
		ended = &t
	}
	return &domain.ImpersonationSession{
		ID:           m.ID,
		AdminUserID:  m.AdminUserID,
		TargetUserID: m.TargetUserID,
		SessionToken: m.SessionToken,
		Reason:       deref(m.Reason),
		Status:       domain.Status(m.Status),
		CreatedAt:    m.CreatedAt.UTC(),
		ExpiresAt:    m.ExpiresAt.UTC(),
		EndedAt:      ended,
	}
}

func impersonationToModel(s *domain.ImpersonationSession) *models.ImpersonationSession {
	return &models.ImpersonationSession{
		ID:           s.ID,
		AdminUserID:  s.AdminUserID,
		TargetUserID: s.TargetUserID,
		SessionToken: s.SessionToken,
		Reason:       ptr(s.Reason),
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt.UTC(),
		ExpiresAt:    s.ExpiresAt.UTC(),
		EndedAt:      s.EndedAt,
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
