package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

// CustomCafeService fronts the custom cafe store. Reads fail soft and return
// empty results; writes validate first and return every error. A nil store
// means the store is not configured.
type CustomCafeService struct {
	store  ports.CustomCafeStore
	events ports.EventPublisher
	now    func() time.Time
}

// NewCustomCafeService creates a new CustomCafeService. store and events may be nil.
func NewCustomCafeService(store ports.CustomCafeStore, events ports.EventPublisher) *CustomCafeService {
	return &CustomCafeService{store: store, events: events, now: time.Now}
}

// Enabled reports whether a store is configured.
func (s *CustomCafeService) Enabled() bool {
	return s.store != nil
}

// Add validates and stores a new cafe.
func (s *CustomCafeService) Add(ctx context.Context, form domain.CafeForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	if !s.Enabled() {
		return "", domain.ErrStoreDisabled
	}
	id, err := s.store.Add(ctx, form)
	s.written(ctx, "add", err)
	if err != nil {
		return "", fmt.Errorf("add custom cafe: %w", err)
	}
	return id, nil
}

// List returns custom cafes, or nothing when the store is unavailable.
func (s *CustomCafeService) List(ctx context.Context) []domain.Cafe {
	if !s.Enabled() {
		return nil
	}
	cafes, err := s.store.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "custom cafes unavailable", "error", err)
		return nil
	}
	return cafes
}

// Update applies a sparse patch to a custom cafe.
func (s *CustomCafeService) Update(ctx context.Context, id string, patch domain.CafePatch) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}
	err := s.store.Update(ctx, id, patch)
	s.written(ctx, "update", err)
	if err != nil {
		return fmt.Errorf("update custom cafe %s: %w", id, err)
	}
	return nil
}

// Delete removes a custom cafe.
func (s *CustomCafeService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}
	err := s.store.Delete(ctx, id)
	s.written(ctx, "delete", err)
	if err != nil {
		return fmt.Errorf("delete custom cafe %s: %w", id, err)
	}
	return nil
}

// SubmitIssueReport validates and stores a report. SubmittedAt is set here.
func (s *CustomCafeService) SubmitIssueReport(ctx context.Context, r domain.IssueReport) error {
	var errs []string
	if strings.TrimSpace(r.CafeID) == "" {
		errs = append(errs, "cafe_id is required")
	}
	if !r.Type.Valid() {
		errs = append(errs, fmt.Sprintf("unknown issue type %q", r.Type))
	}
	if strings.TrimSpace(r.Description) == "" {
		errs = append(errs, "description is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(errs, "; "))
	}
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}

	r.Description = strings.TrimSpace(r.Description)
	r.SuggestedFix = strings.TrimSpace(r.SuggestedFix)
	r.SubmittedAt = s.now().UTC()

	err := s.store.SubmitIssueReport(ctx, r)
	s.observe("report", err)
	if err != nil {
		return fmt.Errorf("submit issue report: %w", err)
	}
	return nil
}

// ListIssueReports returns reports, or nothing when the store is unavailable.
func (s *CustomCafeService) ListIssueReports(ctx context.Context) []domain.IssueReport {
	if !s.Enabled() {
		return nil
	}
	reports, err := s.store.ListIssueReports(ctx)
	if err != nil {
		slog.WarnContext(ctx, "issue reports unavailable", "error", err)
		return nil
	}
	return reports
}

// SaveOverride creates or replaces an override.
func (s *CustomCafeService) SaveOverride(ctx context.Context, o domain.Override) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if !o.Hidden && o.CafePatch.IsEmpty() {
		return fmt.Errorf("%w: override neither hides nor changes anything", domain.ErrValidation)
	}
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}
	now := s.now().UTC()
	o.UpdatedAt = &now

	err := s.store.SaveOverride(ctx, o)
	s.written(ctx, "override", err)
	if err != nil {
		return fmt.Errorf("save override %s: %w", o.OriginalID, err)
	}
	return nil
}

// ListOverrides returns overrides keyed by original id. It never returns nil.
func (s *CustomCafeService) ListOverrides(ctx context.Context) map[string]domain.Override {
	if !s.Enabled() {
		return map[string]domain.Override{}
	}
	overrides, err := s.store.ListOverrides(ctx)
	if err != nil {
		slog.WarnContext(ctx, "overrides unavailable", "error", err)
		return map[string]domain.Override{}
	}
	if overrides == nil {
		overrides = map[string]domain.Override{}
	}
	return overrides
}

// DeleteOverride removes an override.
func (s *CustomCafeService) DeleteOverride(ctx context.Context, originalID string) error {
	if strings.TrimSpace(originalID) == "" {
		return fmt.Errorf("%w: original_id is required", domain.ErrValidation)
	}
	if !s.Enabled() {
		return domain.ErrStoreDisabled
	}
	err := s.store.DeleteOverride(ctx, originalID)
	s.written(ctx, "deleteOverride", err)
	if err != nil {
		return fmt.Errorf("delete override %s: %w", originalID, err)
	}
	return nil
}

// BulkAdd copies cafes into the store. Records without a name or a
// location are counted as skipped without being sent.
func (s *CustomCafeService) BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	if !s.Enabled() {
		return domain.BulkResult{}, domain.ErrStoreDisabled
	}

	valid := make([]domain.Cafe, 0, len(cafes))
	for _, c := range cafes {
		if strings.TrimSpace(c.Name) == "" || c.Location.IsZero() {
			continue
		}
		valid = append(valid, c)
	}
	invalid := len(cafes) - len(valid)

	res := domain.BulkResult{Total: len(cafes), Skipped: invalid}
	if len(valid) == 0 {
		return res, nil
	}

	stored, err := s.store.BulkAdd(ctx, valid)
	s.written(ctx, "bulkAdd", err)
	if err != nil {
		return domain.BulkResult{}, fmt.Errorf("bulk add: %w", err)
	}
	res.Added = stored.Added
	res.Skipped += stored.Skipped
	return res, nil
}

// written records a write and, on success, tells other instances the
// catalog changed.
func (s *CustomCafeService) written(ctx context.Context, action string, err error) {
	s.observe(action, err)
	if err != nil || s.events == nil {
		return
	}
	if perr := s.events.PublishCatalogChanged(ctx, action); perr != nil {
		slog.WarnContext(ctx, "publish catalog change failed", "action", action, "error", perr)
	}
}

func (s *CustomCafeService) observe(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StoreWrites.WithLabelValues(action, outcome).Inc()
}
