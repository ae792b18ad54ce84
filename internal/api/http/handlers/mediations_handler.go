package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/service"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// MediationsHandler exposes the guarded closure workflow under
// /cases/:id/mediation.
type MediationsHandler struct {
	service *service.MediationService
}

// NewMediationsHandler constructs handler.
func NewMediationsHandler(mediationService *service.MediationService) *MediationsHandler {
	return &MediationsHandler{service: mediationService}
}

// Start POST /cases/:id/mediation.
func (h *MediationsHandler) Start(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	mediation, err := h.service.Start(c.Context(), principal.EstablishmentID(), c.Params("id"), principal.Staff.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": mediationResponse(mediation)})
}

// Get GET /cases/:id/mediation.
func (h *MediationsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	mediation, err := h.service.Get(c.Context(), principal.EstablishmentID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mediationResponse(mediation)})
}

// AcknowledgeSummary POST /cases/:id/mediation/summary.
func (h *MediationsHandler) AcknowledgeSummary(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.AcknowledgeSummaryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	mediation, err := h.service.AcknowledgeSummary(c.Context(), principal.EstablishmentID(), c.Params("id"), req.ExpectedVersion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mediationResponse(mediation)})
}

// SelectOutcome POST /cases/:id/mediation/outcome.
func (h *MediationsHandler) SelectOutcome(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.SelectOutcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	mediation, err := h.service.SelectOutcome(c.Context(), principal.EstablishmentID(), c.Params("id"), req.Outcome, req.ExpectedVersion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mediationResponse(mediation)})
}

// SetCommitments POST /cases/:id/mediation/commitments.
func (h *MediationsHandler) SetCommitments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.SetCommitmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	commitments := make([]domain.Commitment, 0, len(req.Commitments))
	for _, item := range req.Commitments {
		commitments = append(commitments, domain.Commitment{
			Description:      item.Description,
			ResponsibleParty: item.ResponsibleParty,
			DueDate:          item.DueDate,
			Fulfilled:        item.Fulfilled,
		})
	}
	mediation, err := h.service.SetCommitments(c.Context(), principal.EstablishmentID(), c.Params("id"), commitments, req.ExpectedVersion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mediationResponse(mediation)})
}

// Confirm POST /cases/:id/mediation/confirm.
func (h *MediationsHandler) Confirm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.ConfirmMediationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	mediation, kase, err := h.service.Confirm(c.Context(), service.ConfirmInput{
		EstablishmentID: principal.EstablishmentID(),
		CaseID:          c.Params("id"),
		ActorID:         principal.Staff.ID,
		Confirmations:   req.Confirmations,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"mediation": mediationResponse(mediation),
		"case":      caseSummary(kase),
	}})
}

func mediationResponse(mediation *domain.Mediation) dto.MediationResponse {
	commitments := make([]dto.CommitmentDTO, 0, len(mediation.Commitments))
	for _, item := range mediation.Commitments {
		commitments = append(commitments, dto.CommitmentDTO{
			Description:      item.Description,
			ResponsibleParty: item.ResponsibleParty,
			DueDate:          item.DueDate,
			Fulfilled:        item.Fulfilled,
		})
	}
	return dto.MediationResponse{
		ID:          mediation.ID,
		CaseID:      mediation.CaseID,
		Step:        mediation.Step,
		Outcome:     mediation.Outcome,
		Commitments: commitments,
		Version:     mediation.Version,
		CreatedAt:   mediation.CreatedAt,
		UpdatedAt:   mediation.UpdatedAt,
		ConfirmedAt: mediation.ConfirmedAt,
	}
}
