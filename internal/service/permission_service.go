package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
)

// Decision is the outcome of one permission resolution.
type Decision struct {
	Allowed bool                `json:"allowed"`
	Basis   model.DecisionBasis `json:"basis"`
}

type PermissionService struct {
	docs   *repo.DocumentRepo
	grants *repo.GrantRepo
	audits *repo.AuditRepo
}

func NewPermissionService(docs *repo.DocumentRepo, grants *repo.GrantRepo, audits *repo.AuditRepo) *PermissionService {
	return &PermissionService{docs: docs, grants: grants, audits: audits}
}

// Resolve decides whether userID may perform level on the document. Ownership
// dominates every grant; otherwise the most specific non-expired grant wins
// (user-specific over role-based). Any lookup or audit failure fails closed:
// the error is returned and the caller must treat it as denied. Exactly two
// audit entries are written per evaluation, the permission_check before any
// lookup and the outcome before returning.
func (s *PermissionService) Resolve(ctx context.Context, docID, userID string, level model.PermissionLevel) (*Decision, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("doc_id", docID),
		zap.String("user_id", userID),
		zap.String("level", string(level)),
	)
	if docID == "" || userID == "" || !level.Valid() {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	if err := s.audits.Append(ctx, &model.AccessAuditEntry{
		ID:         newID(),
		DocumentID: docID,
		UserID:     userID,
		Action:     model.AuditActionCheck,
		Level:      level,
		Ctime:      now,
	}); err != nil {
		logger.Error("audit check write failed", zap.Error(err))
		return nil, fmt.Errorf("%w: audit write: %v", appErr.ErrResolution, err)
	}

	owner, err := s.docs.GetOwner(ctx, docID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			logger.Warn("permission check on missing document")
			return nil, appErr.ErrNotFound
		}
		logger.Error("owner lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: owner lookup: %v", appErr.ErrResolution, err)
	}

	var userGrant, roleGrant *model.PermissionGrant
	if owner != userID {
		userGrant, err = s.lookupGrant(ctx, func() (*model.PermissionGrant, error) {
			return s.grants.GetEffective(ctx, docID, userID, now)
		})
		if err != nil {
			logger.Error("grant lookup failed", zap.Error(err))
			return nil, fmt.Errorf("%w: grant lookup: %v", appErr.ErrResolution, err)
		}
		roleGrant, err = s.lookupGrant(ctx, func() (*model.PermissionGrant, error) {
			return s.grants.GetRoleGrant(ctx, docID, now)
		})
		if err != nil {
			logger.Error("role grant lookup failed", zap.Error(err))
			return nil, fmt.Errorf("%w: role grant lookup: %v", appErr.ErrResolution, err)
		}
	}

	allowed, basis := decide(owner, userID, level, userGrant, roleGrant)

	action := model.AuditActionDenied
	if allowed {
		action = model.AuditActionGranted
	}
	if err := s.audits.Append(ctx, &model.AccessAuditEntry{
		ID:         newID(),
		DocumentID: docID,
		UserID:     userID,
		Action:     action,
		Level:      level,
		Basis:      &basis,
		Ctime:      timeutil.NowUnix(),
	}); err != nil {
		logger.Error("audit outcome write failed", zap.Error(err))
		return nil, fmt.Errorf("%w: audit write: %v", appErr.ErrResolution, err)
	}
	logger.Debug("permission resolved", zap.Bool("allowed", allowed), zap.Bool("is_owner", basis.IsOwner))
	return &Decision{Allowed: allowed, Basis: basis}, nil
}

func (s *PermissionService) lookupGrant(ctx context.Context, fetch func() (*model.PermissionGrant, error)) (*model.PermissionGrant, error) {
	grant, err := fetch()
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return grant, nil
}

// decide applies the precedence rules to already-fetched state. Ownership
// short-circuits; a user-specific grant is authoritative over a role grant
// even when the role grant carries a higher level.
func decide(ownerID, userID string, requested model.PermissionLevel, userGrant, roleGrant *model.PermissionGrant) (bool, model.DecisionBasis) {
	basis := model.DecisionBasis{RequestedLevel: requested}
	if ownerID == userID {
		basis.IsOwner = true
		basis.GrantedLevel = model.LevelAdmin
		return true, basis
	}
	if userGrant != nil {
		basis.HasUserGrant = true
		basis.GrantedLevel = userGrant.Level
		return userGrant.Level.Satisfies(requested), basis
	}
	if roleGrant != nil {
		basis.HasRoleGrant = true
		basis.GrantedLevel = roleGrant.Level
		return roleGrant.Level.Satisfies(requested), basis
	}
	return false, basis
}

type GrantCreateInput struct {
	UserID    string
	Level     model.PermissionLevel
	ExpiresAt int64
}

// CreateGrant requires admin on the document; the requester's own resolution
// is the gate, so grant management is itself audited.
func (s *PermissionService) CreateGrant(ctx context.Context, requesterID, docID string, input GrantCreateInput) (*model.PermissionGrant, error) {
	if !input.Level.Valid() {
		return nil, appErr.ErrInvalid
	}
	if input.ExpiresAt != 0 && input.ExpiresAt <= timeutil.NowUnix() {
		return nil, appErr.ErrInvalid
	}
	if err := s.requireAdmin(ctx, requesterID, docID); err != nil {
		return nil, err
	}
	grant := &model.PermissionGrant{
		ID:         newID(),
		DocumentID: docID,
		UserID:     input.UserID,
		Level:      input.Level,
		ExpiresAt:  input.ExpiresAt,
		Ctime:      timeutil.NowUnix(),
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *PermissionService) ListGrants(ctx context.Context, requesterID, docID string) ([]model.PermissionGrant, error) {
	if err := s.requireAdmin(ctx, requesterID, docID); err != nil {
		return nil, err
	}
	return s.grants.ListByDocument(ctx, docID)
}

func (s *PermissionService) RevokeGrant(ctx context.Context, requesterID, docID, grantID string) error {
	if err := s.requireAdmin(ctx, requesterID, docID); err != nil {
		return err
	}
	return s.grants.Delete(ctx, docID, grantID)
}

func (s *PermissionService) ListAudit(ctx context.Context, requesterID, docID string, limit, offset int) ([]model.AccessAuditEntry, error) {
	if err := s.requireAdmin(ctx, requesterID, docID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.audits.ListByDocument(ctx, docID, limit, offset)
}

func (s *PermissionService) requireAdmin(ctx context.Context, requesterID, docID string) error {
	decision, err := s.Resolve(ctx, docID, requesterID, model.LevelAdmin)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return appErr.ErrForbidden
	}
	return nil
}
