package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults used when a ServiceConfig field is zero.
const (
	DefaultMaxFileSize   int64 = 20 << 20
	DefaultImportTimeout       = 10 * time.Minute
	DefaultPreviewTTL          = 30 * time.Minute
)

// ServiceConfig holds the import limits of a Service.
type ServiceConfig struct {
	MaxFileSize      int64
	ImportTimeout    time.Duration
	OperationTimeout time.Duration
	MaxImportWait    time.Duration
	PreviewTTL       time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.ImportTimeout <= 0 {
		c.ImportTimeout = DefaultImportTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
	if c.MaxImportWait <= 0 {
		c.MaxImportWait = DefaultImportWait
	}
	if c.PreviewTTL <= 0 {
		c.PreviewTTL = DefaultPreviewTTL
	}
	return c
}

// Preview is a parsed and validated workbook awaiting confirmation.
type Preview struct {
	ID        string            `json:"id"`
	ActorID   string            `json:"actorId"`
	FileName  string            `json:"fileName"`
	TotalRows int               `json:"totalRows"`
	Report    *ValidationReport `json:"report"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`

	workbook *ParsedWorkbook
}

// Service orchestrates parse, validate and execute for the outer layers.
type Service struct {
	store   Store
	sink    AuditSink
	limiter *ImportLimiter
	cfg     ServiceConfig
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	previews map[string]*Preview
}

// NewService creates a Service over store and sink. sink may be nil.
func NewService(store Store, sink AuditSink, cfg ServiceConfig) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:    newGuardedStore(store, cfg.OperationTimeout),
		sink:     sink,
		limiter:  NewImportLimiter(cfg.MaxImportWait),
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		previews: make(map[string]*Preview),
	}
}

// Analyze reads, parses and validates a workbook against current storage.
func (s *Service) Analyze(ctx context.Context, r io.Reader) (*ParsedWorkbook, *ValidationReport, error) {
	data, err := s.readLimited(r)
	if err != nil {
		return nil, nil, err
	}

	wb, err := ParseWorkbook(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := LoadSnapshot(ctx, s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	return wb, Validate(wb, snapshot), nil
}

// readLimited reads at most MaxFileSize bytes from r.
func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

// Preview validates a workbook and keeps it until executed, discarded or expired.
func (s *Service) Preview(ctx context.Context, actorID, fileName string, r io.Reader) (*Preview, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}

	wb, report, err := s.Analyze(ctx, r)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &Preview{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		FileName:  fileName,
		TotalRows: wb.TotalRows(),
		Report:    report,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.PreviewTTL),
		workbook:  wb,
	}

	s.mu.Lock()
	s.previews[p.ID] = p
	s.mu.Unlock()

	s.logger.Info("import preview created",
		"preview_id", p.ID,
		"actor_id", actorID,
		"file", fileName,
		"rows", p.TotalRows,
		"can_import", report.CanImport,
	)
	return p, nil
}

// GetPreview returns a pending preview.
func (s *Service) GetPreview(id string) (*Preview, error) {
	s.mu.RLock()
	p, ok := s.previews[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(p.ExpiresAt) {
		return nil, ErrPreviewNotFound
	}
	return p, nil
}

// DiscardPreview drops a pending preview.
func (s *Service) DiscardPreview(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.previews[id]; !ok {
		return ErrPreviewNotFound
	}
	delete(s.previews, id)
	return nil
}

// checkPreview reports whether actorID may execute preview id.
// Caller must hold s.mu.
func (s *Service) checkPreview(id, actorID string) (*Preview, error) {
	p, ok := s.previews[id]
	if !ok || !s.now().Before(p.ExpiresAt) {
		return nil, ErrPreviewNotFound
	}
	if p.ActorID != actorID {
		return nil, ErrActorMismatch
	}
	if !p.Report.CanImport {
		return nil, ErrImportBlocked
	}
	return p, nil
}

// takePreview removes and returns a preview so it executes at most once.
func (s *Service) takePreview(id, actorID string) (*Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkPreview(id, actorID)
	if err != nil {
		return nil, err
	}
	delete(s.previews, id)
	return p, nil
}

// Execute applies a confirmed preview. Only one import runs at a time.
func (s *Service) Execute(ctx context.Context, previewID, actorID string) (ImportSummary, error) {
	if actorID == "" {
		return ImportSummary{}, ErrActorRequired
	}

	// Fail fast on a bad preview instead of queueing behind another import.
	s.mu.Lock()
	_, err := s.checkPreview(previewID, actorID)
	s.mu.Unlock()
	if err != nil {
		return ImportSummary{}, err
	}

	if err := s.limiter.Acquire(ctx, actorID); err != nil {
		return ImportSummary{}, err
	}
	defer s.limiter.Release()

	p, err := s.takePreview(previewID, actorID)
	if err != nil {
		return ImportSummary{}, err
	}

	return s.execute(ctx, s.store, s.sink, p.workbook, actorID, ExecuteOptions{})
}

// Run parses, validates and executes a workbook in one call.
// Nothing is written when the workbook has ERROR issues.
func (s *Service) Run(ctx context.Context, actorID string, r io.Reader) (*ValidationReport, ImportSummary, error) {
	if actorID == "" {
		return nil, ImportSummary{}, ErrActorRequired
	}

	wb, report, err := s.Analyze(ctx, r)
	if err != nil {
		return nil, ImportSummary{}, err
	}
	if !report.CanImport {
		return report, ImportSummary{}, ErrImportBlocked
	}

	if err := s.limiter.Acquire(ctx, actorID); err != nil {
		return report, ImportSummary{}, err
	}
	defer s.limiter.Release()

	summary, err := s.execute(ctx, s.store, s.sink, wb, actorID, ExecuteOptions{})
	return report, summary, err
}

// DryRun executes a workbook against an in-memory copy of storage. Rows
// with ERROR issues are skipped rather than blocking the run, so the
// summary shows what the remaining rows would do.
func (s *Service) DryRun(ctx context.Context, actorID string, r io.Reader) (*ValidationReport, ImportSummary, error) {
	if actorID == "" {
		return nil, ImportSummary{}, ErrActorRequired
	}

	wb, report, err := s.Analyze(ctx, r)
	if err != nil {
		return nil, ImportSummary{}, err
	}

	scratch, err := CopyStore(ctx, s.store)
	if err != nil {
		return report, ImportSummary{}, fmt.Errorf("prepare dry run: %w", err)
	}

	summary, err := s.execute(ctx, scratch, NewMemoryAuditSink(), wb, actorID, ExecuteOptions{
		Exclude: report.ErrorRows(),
	})
	return report, summary, err
}

func (s *Service) execute(ctx context.Context, store Store, sink AuditSink, wb *ParsedWorkbook, actorID string, opts ExecuteOptions) (ImportSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	exec := NewExecutor(store, sink,
		WithOperationTimeout(s.cfg.OperationTimeout),
		WithLogger(s.logger),
	)
	return exec.Execute(runCtx, wb, actorID, opts)
}

// ListAudit lists audit entries when the sink can be queried.
func (s *Service) ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	reader, ok := s.sink.(AuditReader)
	if !ok {
		return nil, ErrAuditUnavailable
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	return reader.ListAudit(ctx, filter)
}

// ImportStatus reports whether an import is running and how many previews are pending.
type ImportStatus struct {
	Import          ImportLimiterStatus `json:"import"`
	PendingPreviews int                 `json:"pendingPreviews"`
}

// Status returns the current import status for monitoring.
func (s *Service) Status() ImportStatus {
	s.mu.RLock()
	pending := len(s.previews)
	s.mu.RUnlock()

	return ImportStatus{
		Import:          s.limiter.Status(),
		PendingPreviews: pending,
	}
}

// WaitForImports blocks until the running import finishes or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
