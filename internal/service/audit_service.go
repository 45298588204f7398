package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/diff"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type auditStore interface {
	CreateWithDiffs(ctx context.Context, uow *repository.UnitOfWork, entry *models.AuditLogEntry, diffs []models.AuditFieldDiff) error
	GetByID(ctx context.Context, id string) (*models.AuditLogEntry, error)
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error)
	ListDiffs(ctx context.Context, auditLogID string) ([]models.AuditFieldDiff, error)
	StampReview(ctx context.Context, uow *repository.UnitOfWork, auditLogID string, reviewedAt time.Time, reviewedBy string) error
}

type unitOfWorkRunner interface {
	RunInUnitOfWork(ctx context.Context, fn func(uow *repository.UnitOfWork) error) error
}

type auditMetrics interface {
	ObserveAuditEntry(action, severity string)
}

// AppendAuditParams carries everything one audit entry is built from.
type AppendAuditParams struct {
	Action              models.AuditAction
	RecordID            string
	PatientID           string
	ActorID             string
	ActorRole           models.ActorRole
	PreviousState       *models.RecordState
	NewState            *models.RecordState
	Reason              *string
	Request             models.RequestContext
	VersionBefore       *int
	VersionAfter        *int
	IsOutsideEncounter  bool
	InformationSource   *string
	VerifiedWithPatient *bool
}

// AuditService writes the append-only, tamper-evident audit trail.
type AuditService struct {
	repo         auditStore
	tx           unitOfWorkRunner
	sanitization models.SanitizationLevel
	metrics      auditMetrics
	logger       *zap.Logger
}

// AuditServiceOption configures the service.
type AuditServiceOption func(*AuditService)

// WithAuditMetrics wires the audit counters.
func WithAuditMetrics(metrics auditMetrics) AuditServiceOption {
	return func(s *AuditService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewAuditService constructs the service with defaults.
func NewAuditService(repo auditStore, tx unitOfWorkRunner, sanitization models.SanitizationLevel, logger *zap.Logger, opts ...AuditServiceOption) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch sanitization {
	case models.SanitizationNone, models.SanitizationPartial, models.SanitizationFull:
	default:
		sanitization = models.SanitizationPartial
	}
	svc := &AuditService{repo: repo, tx: tx, sanitization: sanitization, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Append builds and persists one audit entry plus its normalized diff rows
// through the caller's unit of work. It returns the entry and the computed
// diff list so the review workflow can consume it.
func (s *AuditService) Append(ctx context.Context, uow *repository.UnitOfWork, params AppendAuditParams) (*models.AuditLogEntry, []models.FieldDiff, error) {
	if params.RecordID == "" || params.ActorID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "recordId and actorId are required")
	}

	diffs := computeActionDiffs(params)
	severity := diff.ClassifySeverity(diffs, params.Action)
	now := time.Now().UTC()

	previous, err := sanitizeState(params.PreviousState, s.sanitization, params.RecordID, params.PatientID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sanitize previous state")
	}
	next, err := sanitizeState(params.NewState, s.sanitization, params.RecordID, params.PatientID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sanitize new state")
	}

	diffsJSON, err := json.Marshal(diffs)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode diffs")
	}
	summary := models.SummarizeDiffs(diffs)
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode summary")
	}

	requiresReview := false
	if params.IsOutsideEncounter {
		for _, d := range diffs {
			if diff.RequiresReview(d.FieldPath, d.ChangeType) {
				requiresReview = true
				break
			}
		}
	}

	entry := &models.AuditLogEntry{
		RecordID:            params.RecordID,
		PatientID:           params.PatientID,
		Action:              params.Action,
		ActorID:             params.ActorID,
		ActorRole:           params.ActorRole,
		IPAddress:           params.Request.IP,
		UserAgent:           params.Request.UserAgent,
		SessionID:           params.Request.SessionID,
		RequestPath:         params.Request.Path,
		PreviousState:       previous,
		NewState:            next,
		Diffs:               diffsJSON,
		Summary:             summaryJSON,
		Severity:            severity,
		Reason:              params.Reason,
		VersionBefore:       params.VersionBefore,
		VersionAfter:        params.VersionAfter,
		IntegrityHash:       integrityHash(params.RecordID, params.Action, params.ActorID, now, len(diffs)),
		IsOutsideEncounter:  params.IsOutsideEncounter,
		InformationSource:   params.InformationSource,
		VerifiedWithPatient: params.VerifiedWithPatient,
		RequiresReview:      requiresReview,
		CreatedAt:           now,
	}

	rows := make([]models.AuditFieldDiff, 0, len(diffs))
	for _, d := range diffs {
		row := models.AuditFieldDiff{
			FieldPath:  d.FieldPath,
			Label:      d.Label,
			FieldType:  d.FieldType,
			OldDisplay: d.OldDisplay,
			NewDisplay: d.NewDisplay,
			IsCritical: d.IsCritical,
			ChangeType: d.ChangeType,
		}
		if d.OldValue != nil {
			if row.OldValue, err = json.Marshal(d.OldValue); err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode diff value")
			}
		}
		if d.NewValue != nil {
			if row.NewValue, err = json.Marshal(d.NewValue); err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode diff value")
			}
		}
		rows = append(rows, row)
	}

	if err := s.repo.CreateWithDiffs(ctx, uow, entry, rows); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write audit entry")
	}
	if s.metrics != nil {
		s.metrics.ObserveAuditEntry(string(params.Action), string(severity))
	}
	return entry, diffs, nil
}

// SecondaryAudit is the outcome of a best-effort audit write accompanying a
// primary operation. The caller must consciously Discard it; the failure is
// logged but never aborts the primary data change.
type SecondaryAudit struct {
	ID  string
	Err error
}

// Discard logs the failure, if any, and drops the result.
func (r SecondaryAudit) Discard(logger *zap.Logger) {
	if r.Err != nil && logger != nil {
		logger.Warn("secondary audit write failed", zap.Error(r.Err))
	}
}

// AppendSecondary writes an audit entry in its own unit of work, capturing
// any failure in the returned result instead of propagating it.
func (s *AuditService) AppendSecondary(ctx context.Context, params AppendAuditParams) SecondaryAudit {
	var entry *models.AuditLogEntry
	err := s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		var appendErr error
		entry, _, appendErr = s.Append(ctx, uow, params)
		return appendErr
	})
	if err != nil {
		return SecondaryAudit{Err: err}
	}
	return SecondaryAudit{ID: entry.ID}
}

// Get returns one audit entry.
func (s *AuditService) Get(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "audit entry not found")
	}
	return entry, nil
}

// List returns the audit trail matching the filter.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error) {
	return s.repo.List(ctx, filter)
}

// ListDiffs returns the normalized per-field rows of one entry.
func (s *AuditService) ListDiffs(ctx context.Context, auditLogID string) ([]models.AuditFieldDiff, error) {
	return s.repo.ListDiffs(ctx, auditLogID)
}

// computeActionDiffs derives the diff list for the action kind. Read-only
// actions never produce diffs.
func computeActionDiffs(params AppendAuditParams) []models.FieldDiff {
	switch params.Action {
	case models.AuditActionCreate:
		return diff.Compute(nil, params.NewState)
	case models.AuditActionUpdate, models.AuditActionRestore:
		return diff.Compute(params.PreviousState, params.NewState)
	case models.AuditActionDelete:
		return diff.Compute(params.PreviousState, nil)
	case models.AuditActionView, models.AuditActionExport, models.AuditActionPrint:
		return nil
	}
	return nil
}

// integrityHash computes the per-row tamper evidence: a SHA-256 over the
// canonical (sorted-key) serialization of the identifying entry fields. It is
// deliberately not chained to prior rows.
func integrityHash(recordID string, action models.AuditAction, actorID string, ts time.Time, diffCount int) string {
	canonical, _ := json.Marshal(map[string]interface{}{
		"action":    string(action),
		"actorId":   actorID,
		"diffCount": diffCount,
		"recordId":  recordID,
		"timestamp": ts.Format(time.RFC3339Nano),
	})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// RequestContextFrom extracts best-effort request metadata. A missing or
// malformed header never fails the audit write.
func RequestContextFrom(r *http.Request) models.RequestContext {
	if r == nil {
		return models.RequestContext{}
	}
	rc := models.RequestContext{
		UserAgent: r.UserAgent(),
		SessionID: r.Header.Get("X-Session-ID"),
	}
	if r.URL != nil {
		rc.Path = r.URL.Path
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		rc.IP = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		rc.IP = strings.TrimSpace(realIP)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		rc.IP = host
	} else {
		rc.IP = r.RemoteAddr
	}
	return rc
}

func mapNotFound(err error, message string) error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("storage failure: %s", message))
}
