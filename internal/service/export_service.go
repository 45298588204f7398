package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/diff"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/export"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/storage"
)

// ExportFormat names the supported output encodings.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type exportRecordStore interface {
	GetByID(ctx context.Context, id string) (*models.Record, error)
}

type auditTrailReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error)
}

// ExportResult points the caller at the generated document.
type ExportResult struct {
	ExportID  string
	FileName  string
	Token     string
	ExpiresAt time.Time
	Size      int
}

// ExportService renders records and audit trails into downloadable documents.
// Every export and print is itself audited, and that audit entry is part of
// the operation: if it cannot be written, the export fails.
type ExportService struct {
	records exportRecordStore
	trail   auditTrailReader
	audits  auditAppender
	tx      unitOfWorkRunner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(records exportRecordStore, trail auditTrailReader, audits auditAppender, tx unitOfWorkRunner, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		records: records,
		trail:   trail,
		audits:  audits,
		tx:      tx,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		store:   store,
		signer:  signer,
		logger:  logger,
	}
}

// ExportRecord renders the record's current state and stores the document.
func (s *ExportService) ExportRecord(ctx context.Context, recordID string, format ExportFormat, actor Actor, request models.RequestContext) (*ExportResult, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	state, err := record.State()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}

	dataset := recordDataset(state)
	title := fmt.Sprintf("Historia clinica %s v%d", record.PatientID, record.Version)
	content, err := s.render(dataset, format, title)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, record, models.AuditActionExport, format, "registro", content, actor, request)
}

// ExportAuditTrail renders the record's audit history and stores the document.
func (s *ExportService) ExportAuditTrail(ctx context.Context, recordID string, format ExportFormat, actor Actor, request models.RequestContext) (*ExportResult, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	entries, err := s.trail.List(ctx, models.AuditFilter{RecordID: recordID, Limit: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}

	dataset := auditDataset(entries)
	title := fmt.Sprintf("Auditoria %s", record.PatientID)
	content, err := s.render(dataset, format, title)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, record, models.AuditActionExport, format, "auditoria", content, actor, request)
}

// PrintRecord renders the record as a PDF and returns the bytes directly for
// immediate printing, auditing the access as PRINT.
func (s *ExportService) PrintRecord(ctx context.Context, recordID string, actor Actor, request models.RequestContext) ([]byte, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	state, err := record.State()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}

	title := fmt.Sprintf("Historia clinica %s v%d", record.PatientID, record.Version)
	content, err := s.render(recordDataset(state), FormatPDF, title)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, record, models.AuditActionPrint, actor, request); err != nil {
		return nil, err
	}
	return content, nil
}

// Download validates a signed token and opens the referenced document.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, relPath, nil
}

func (s *ExportService) render(dataset export.Dataset, format ExportFormat, title string) ([]byte, error) {
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return content, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return content, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
}

// finish stores the rendered document, audits the export, and signs the
// download token. The stored file is removed again when the audit write fails.
func (s *ExportService) finish(ctx context.Context, record *models.Record, action models.AuditAction, format ExportFormat, kind string, content []byte, actor Actor, request models.RequestContext) (*ExportResult, error) {
	exportID := uuid.NewString()
	fileName := fmt.Sprintf("%s/%s_%s_%s.%s", record.PatientID, kind, time.Now().UTC().Format("20060102T150405"), exportID[:8], format)

	if _, err := s.store.Save(fileName, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	if err := s.audit(ctx, record, action, actor, request); err != nil {
		if cleanupErr := s.store.Delete(fileName); cleanupErr != nil {
			s.logger.Warn("orphan export cleanup failed", zap.String("file", fileName), zap.Error(cleanupErr))
		}
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(exportID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	return &ExportResult{
		ExportID:  exportID,
		FileName:  fileName,
		Token:     token,
		ExpiresAt: expiresAt,
		Size:      len(content),
	}, nil
}

func (s *ExportService) audit(ctx context.Context, record *models.Record, action models.AuditAction, actor Actor, request models.RequestContext) error {
	return s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		_, _, err := s.audits.Append(ctx, uow, AppendAuditParams{
			Action:    action,
			RecordID:  record.ID,
			PatientID: record.PatientID,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Request:   request,
		})
		return err
	})
}

// recordDataset flattens the current state into label/value rows using the
// same projection the differ applies to a creation.
func recordDataset(state *models.RecordState) export.Dataset {
	diffs := diff.Compute(nil, state)
	rows := make([]map[string]string, 0, len(diffs))
	for _, d := range diffs {
		rows = append(rows, map[string]string{
			"Campo": d.Label,
			"Valor": d.NewDisplay,
		})
	}
	return export.Dataset{Headers: []string{"Campo", "Valor"}, Rows: rows}
}

func auditDataset(entries []models.AuditLogEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		row := map[string]string{
			"Fecha":     e.CreatedAt.Format(time.RFC3339),
			"Accion":    string(e.Action),
			"Actor":     e.ActorID,
			"Rol":       string(e.ActorRole),
			"Severidad": string(e.Severity),
		}
		if e.Reason != nil {
			row["Motivo"] = *e.Reason
		}
		if e.VersionAfter != nil {
			row["Version"] = fmt.Sprintf("%d", *e.VersionAfter)
		}
		if e.IsOutsideEncounter {
			row["Contexto"] = "fuera de consulta"
			if e.InformationSource != nil {
				row["Contexto"] = strings.Join([]string{"fuera de consulta", *e.InformationSource}, ": ")
			}
		} else {
			row["Contexto"] = "en consulta"
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Headers: []string{"Fecha", "Accion", "Actor", "Rol", "Severidad", "Version", "Motivo", "Contexto"},
		Rows:    rows,
	}
}
