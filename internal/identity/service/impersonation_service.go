package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"truledgr/backend/internal/audit"
	auditdomain "truledgr/backend/internal/audit/domain"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/security"
	sessiondomain "truledgr/backend/internal/session/domain"
	userdomain "truledgr/backend/internal/user/domain"
)

// maxReasonLength caps the free-text justification stored with an impersonation session.
const maxReasonLength = 500

// ImpersonationResult is returned by ImpersonationService.Start.
type ImpersonationResult struct {
	AccessToken            string
	RefreshToken           string
	TokenType              string
	AccessExpiresAt        time.Time
	ImpersonationSessionID string
	AdminUserID            string
	TargetUserID           string
	ExpiresAt              time.Time
}

// ImpersonationService lets administrators act as another user through a separate,
// time-boxed impersonation session.
type ImpersonationService struct {
	users    UserRepo
	sessions ImpersonationRepo
	codec    *security.TokenCodec
	cfg      Config
	options
}

// NewImpersonationService returns an ImpersonationService.
func NewImpersonationService(users UserRepo, sessions ImpersonationRepo, codec *security.TokenCodec, cfg Config, opts ...Option) *ImpersonationService {
	return &ImpersonationService{
		users:    users,
		sessions: sessions,
		codec:    codec,
		cfg:      cfg.withDefaults(),
		options:  buildOptions(opts),
	}
}

// Start opens an impersonation session for admin acting as targetUserID and issues its
// tokens. The admin's own sessions are untouched.
func (s *ImpersonationService) Start(ctx context.Context, admin *userdomain.User, targetUserID, reason string) (*ImpersonationResult, error) {
	res, err := s.start(ctx, admin, strings.TrimSpace(targetUserID), strings.TrimSpace(reason))
	if err != nil {
		s.recordImpersonation(ctx, outcomeFailure, string(KindOf(err)))
		return nil, err
	}
	s.recordImpersonation(ctx, outcomeSuccess, "")
	return res, nil
}

func (s *ImpersonationService) start(ctx context.Context, admin *userdomain.User, targetUserID, reason string) (*ImpersonationResult, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	if err := validation.Validate(targetUserID, validation.Required); err != nil {
		return nil, invalidArgument("target_user_id is required")
	}
	if err := validation.Validate(reason, validation.RuneLength(0, maxReasonLength)); err != nil {
		return nil, invalidArgument("reason must be at most 500 characters")
	}
	if admin.ID == targetUserID {
		return nil, ErrSelfImpersonation
	}
	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, unavailable(err)
	}
	if target == nil || !target.IsActive {
		return nil, ErrTargetNotFound
	}

	now := s.clock()
	imp, err := s.openImpersonation(ctx, admin.ID, target.ID, reason, now)
	if err != nil {
		return nil, err
	}
	claims := security.TokenInfo{UserID: target.ID, SessionToken: imp.SessionToken}
	access, accessExp, err := s.codec.Issue(security.ImpersonationAccessClaims{
		TokenInfo:              claims,
		AdminUserID:            admin.ID,
		ImpersonationSessionID: imp.ID,
	}, minDuration(s.cfg.AccessTTL, s.cfg.ImpersonationTTL))
	if err != nil {
		return nil, unavailable(err)
	}
	refresh, _, err := s.codec.Issue(security.ImpersonationRefreshClaims{
		TokenInfo:              claims,
		AdminUserID:            admin.ID,
		ImpersonationSessionID: imp.ID,
	}, s.cfg.ImpersonationTTL)
	if err != nil {
		return nil, unavailable(err)
	}

	s.logEvent(ctx, audit.Event{
		ActorUserID:   admin.ID,
		SubjectUserID: target.ID,
		Action:        auditdomain.ActionImpersonationStart,
		Resource:      auditdomain.ResourceImpersonationSession,
		ResourceID:    imp.ID,
		Metadata:      map[string]any{"reason": reason, "target_username": target.Username},
	})
	s.log.InfoContext(ctx, "impersonation started",
		"admin_user_id", admin.ID, "target_user_id", target.ID, "impersonation_session_id", imp.ID)
	return &ImpersonationResult{
		AccessToken:            access,
		RefreshToken:           refresh,
		TokenType:              TokenTypeBearer,
		AccessExpiresAt:        accessExp,
		ImpersonationSessionID: imp.ID,
		AdminUserID:            admin.ID,
		TargetUserID:           target.ID,
		ExpiresAt:              imp.ExpiresAt,
	}, nil
}

func (s *ImpersonationService) openImpersonation(ctx context.Context, adminID, targetID, reason string, now time.Time) (*sessiondomain.ImpersonationSession, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		token, err := security.NewOpaqueToken()
		if err != nil {
			return nil, unavailable(err)
		}
		imp := &sessiondomain.ImpersonationSession{
			ID:           db.NewID(),
			AdminUserID:  adminID,
			TargetUserID: targetID,
			SessionToken: token,
			Reason:       reason,
			Status:       sessiondomain.StatusActive,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.cfg.ImpersonationTTL),
		}
		err = s.sessions.CreateImpersonation(ctx, imp)
		if err == nil {
			return imp, nil
		}
		if !errors.Is(err, sessiondomain.ErrConflict) {
			return nil, unavailable(err)
		}
		s.log.WarnContext(ctx, "impersonation token collision, regenerating", "attempt", attempt+1)
	}
	return nil, ErrConflict
}

// End revokes the impersonation session if adminUserID started it and it is still live.
// Anything else, including a second End, is ErrSessionNotFound.
func (s *ImpersonationService) End(ctx context.Context, sessionID, adminUserID string) error {
	now := s.clock()
	ended, err := s.sessions.EndImpersonation(ctx, sessionID, adminUserID, now)
	if err != nil {
		return unavailable(err)
	}
	if !ended {
		return ErrSessionNotFound
	}
	var targetID string
	if imp, err := s.sessions.GetImpersonationByID(ctx, sessionID); err == nil && imp != nil {
		targetID = imp.TargetUserID
	}
	s.logEvent(ctx, audit.Event{
		ActorUserID:   adminUserID,
		SubjectUserID: targetID,
		Action:        auditdomain.ActionImpersonationEnd,
		Resource:      auditdomain.ResourceImpersonationSession,
		ResourceID:    sessionID,
	})
	s.log.InfoContext(ctx, "impersonation ended", "admin_user_id", adminUserID, "impersonation_session_id", sessionID)
	return nil
}

// List returns every impersonation session started by adminUserID, newest first.
func (s *ImpersonationService) List(ctx context.Context, adminUserID string) ([]*sessiondomain.ImpersonationSummary, error) {
	list, err := s.sessions.ListImpersonationsByAdmin(ctx, adminUserID)
	if err != nil {
		return nil, unavailable(err)
	}
	return list, nil
}

func (s *ImpersonationService) recordImpersonation(ctx context.Context, outcome, reason string) {
	if s.metrics != nil {
		s.metrics.RecordImpersonation(ctx, outcome, reason)
	}
}
