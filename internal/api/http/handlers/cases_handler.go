package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// CasesHandler manages case lifecycle endpoints. Every route is scoped to
// the authenticated staff member's establishment.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StudentID == "" || req.Title == "" {
		return apperrors.NewValidationError("student_id and title required", nil)
	}

	kase, err := h.service.OpenCase(c.Context(), service.CaseOpenInput{
		EstablishmentID: principal.EstablishmentID(),
		StudentID:       req.StudentID,
		ReportedByID:    principal.Staff.ID,
		Title:           req.Title,
		Description:     req.Description,
		Severity:        req.Severity,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": caseSummary(kase)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	filter := parseCaseQuery(c, principal.EstablishmentID())
	cases, err := h.service.ListCases(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.CaseSummary, 0, len(cases))
	for i := range cases {
		items = append(items, caseSummary(&cases[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	establishmentID := principal.EstablishmentID()
	kase, err := h.service.GetCase(c.Context(), establishmentID, c.Params("id"))
	if err != nil {
		return err
	}
	audit, err := h.service.ListAudit(c.Context(), establishmentID, kase.ID)
	if err != nil {
		return err
	}
	notes, err := h.service.ListNotes(c.Context(), establishmentID, kase.ID)
	if err != nil {
		return err
	}
	evidence, err := h.service.ListEvidence(c.Context(), establishmentID, kase.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(kase, audit, notes, evidence)})
}

// ListTransitionOptions GET /cases/:id/transitions.
func (h *CasesHandler) ListTransitionOptions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	kase, err := h.service.GetCase(c.Context(), principal.EstablishmentID(), c.Params("id"))
	if err != nil {
		return err
	}
	options := make([]dto.TransitionOptionResponse, 0)
	for _, rule := range domain.TransitionRules() {
		if !rule.AllowsFrom(kase.Stage) {
			continue
		}
		options = append(options, dto.TransitionOptionResponse{
			TransitionID:      rule.ID,
			ToStage:           rule.ToStage,
			RequiredChecklist: rule.RequiredChecklist,
		})
	}
	return c.JSON(fiber.Map{"data": options})
}

// Transition POST /cases/:id/transitions.
func (h *CasesHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TransitionID == "" {
		return apperrors.NewValidationError("transition_id required", nil)
	}
	// Mediated closure only commits through the mediation confirm endpoint,
	// which carries the mediation outcome with it.
	if req.TransitionID == domain.TransitionDeriveMediation {
		return apperrors.NewValidationError("mediated closure is committed via the mediation confirm endpoint", nil)
	}

	kase, err := h.service.AttemptTransition(c.Context(), service.TransitionInput{
		EstablishmentID: principal.EstablishmentID(),
		CaseID:          c.Params("id"),
		TransitionID:    req.TransitionID,
		Confirmations:   req.Confirmations,
		ActorID:         principal.Staff.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(kase)})
}

// ListAudit GET /cases/:id/audit.
func (h *CasesHandler) ListAudit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	entries, err := h.service.ListAudit(c.Context(), principal.EstablishmentID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

// AddNote POST /cases/:id/notes.
func (h *CasesHandler) AddNote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CreateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Kind == "" {
		req.Kind = domain.NoteKindInternal
	}
	note, err := h.service.AddNote(c.Context(), principal.EstablishmentID(), c.Params("id"), principal.Staff.ID, req.Kind, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": noteResponse(note)})
}

// AddEvidence POST /cases/:id/evidence.
func (h *CasesHandler) AddEvidence(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CreateEvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	evidence, err := h.service.AddEvidence(c.Context(), principal.EstablishmentID(), c.Params("id"), principal.Staff.ID, service.EvidenceInput{
		StorageKey: req.StorageKey,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": evidenceResponse(evidence)})
}

func parseCaseQuery(c *fiber.Ctx, establishmentID string) repository.CaseFilter {
	filter := repository.CaseFilter{EstablishmentID: establishmentID}
	if stageStr := c.Query("stage"); stageStr != "" {
		for _, part := range strings.Split(stageStr, ",") {
			filter.Stages = append(filter.Stages, domain.CaseStage(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			filter.Severities = append(filter.Severities, domain.CaseSeverity(strings.TrimSpace(part)))
		}
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filter.StudentID = &studentID
	}
	filter.OpenOnly = c.Query("open") == "true"

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func caseSummary(kase *domain.Case) dto.CaseSummary {
	return dto.CaseSummary{
		ID:                      kase.ID,
		ExternalKey:             kase.ExternalKey,
		StudentID:               kase.StudentID,
		Title:                   kase.Title,
		Severity:                kase.Severity,
		Stage:                   kase.Stage,
		Outcome:                 kase.Outcome,
		OpenedAt:                kase.OpenedAt,
		FatalDeadline:           kase.FatalDeadline,
		DeadlineDegraded:        kase.DeadlineDegraded,
		ReconsiderationDeadline: kase.ReconsiderationDeadline,
		Version:                 kase.Version,
		CreatedAt:               kase.CreatedAt,
		UpdatedAt:               kase.UpdatedAt,
		ClosedAt:                kase.ClosedAt,
	}
}

func caseDetail(kase *domain.Case, audit []domain.AuditEntry, notes []domain.CaseNote, evidence []domain.EvidenceReference) dto.CaseDetailResponse {
	noteItems := make([]dto.CaseNoteResponse, 0, len(notes))
	for i := range notes {
		noteItems = append(noteItems, noteResponse(&notes[i]))
	}
	evidenceItems := make([]dto.EvidenceResponse, 0, len(evidence))
	for i := range evidence {
		evidenceItems = append(evidenceItems, evidenceResponse(&evidence[i]))
	}
	return dto.CaseDetailResponse{
		CaseSummary: caseSummary(kase),
		Description: kase.Description,
		ReportedBy:  kase.ReportedByID,
		Audit:       auditResponses(audit),
		Notes:       noteItems,
		Evidence:    evidenceItems,
	}
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:                 entry.ID,
			TransitionID:       entry.TransitionID,
			FromStage:          entry.FromStage,
			ToStage:            entry.ToStage,
			ActorID:            entry.ActorID,
			SatisfiedChecklist: entry.SatisfiedChecklist,
			CreatedAt:          entry.CreatedAt,
		})
	}
	return resp
}

func noteResponse(note *domain.CaseNote) dto.CaseNoteResponse {
	return dto.CaseNoteResponse{
		ID:        note.ID,
		AuthorID:  note.AuthorID,
		Kind:      note.Kind,
		Body:      note.Body,
		CreatedAt: note.CreatedAt,
	}
}

func evidenceResponse(evidence *domain.EvidenceReference) dto.EvidenceResponse {
	return dto.EvidenceResponse{
		ID:         evidence.ID,
		UploadedBy: evidence.UploadedBy,
		StorageKey: evidence.StorageKey,
		FileName:   evidence.FileName,
		MimeType:   evidence.MimeType,
		SizeBytes:  evidence.SizeBytes,
		CreatedAt:  evidence.CreatedAt,
	}
}
