// Package web provides the read-only HTTP inspection API for payment
// workflows. The engine itself is a library; this surface never mutates.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence"
)

type APIHandlers struct {
	store     persistence.RecordStore
	validator *validator.Validate
}

func NewAPIHandlers(store persistence.RecordStore, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		store:     store,
		validator: validator,
	}
}

// GetWorkflow returns one workflow record.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	req := ListRequest{
		Owner: c.Query("owner"),
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "owner query parameter is required")
	}

	workflow, err := h.store.Load(c.Context(), req.Owner, c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(workflow)
}

// ListWorkflowsByState returns workflow IDs for one (owner, type, state)
// triple.
func (h *APIHandlers) ListWorkflowsByState(c fiber.Ctx) error {
	req := ListRequest{
		Owner: c.Query("owner"),
		Type:  c.Query("type"),
		State: c.Query("state"),
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "owner query parameter is required")
	}

	kind := models.Kind(req.Type)
	if !kind.IsValid() {
		return badRequest(c, "unknown workflow type: "+req.Type)
	}

	ids, err := h.store.ListByState(c.Context(), req.Owner, kind, models.State(req.State))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_ids": ids,
		"total_count":  len(ids),
	})
}

// ListWorkflowsByAccount returns workflow IDs touching one account.
func (h *APIHandlers) ListWorkflowsByAccount(c fiber.Ctx) error {
	req := ListRequest{
		Owner: c.Query("owner"),
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, "owner query parameter is required")
	}

	ids, err := h.store.ListByAccount(c.Context(), req.Owner, c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_ids": ids,
		"total_count":  len(ids),
	})
}
