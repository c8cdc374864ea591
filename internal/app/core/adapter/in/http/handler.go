package http

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/psouza/walletcore/internal/app/core/domain"
	"github.com/psouza/walletcore/internal/app/core/usecase"
)

// Handler exposes the three ledger operations over HTTP. It only parses,
// delegates and maps errors; every invariant lives in the engine.
type Handler struct {
	engine   *usecase.LedgerEngine
	validate *validator.Validate
	log      *slog.Logger
}

func NewHandler(engine *usecase.LedgerEngine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		engine:   engine,
		validate: validator.New(),
		log:      log,
	}
}

type createMovementRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	ReceiverID string          `json:"receiverId" validate:"required,uuid"`
	Kind       string          `json:"kind" validate:"required,oneof=DEPOSIT TRANSFER"`
}

// CreateMovement handles POST /v1/movements.
func (h *Handler) CreateMovement(c *fiber.Ctx) error {
	var req createMovementRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "request body is not valid JSON")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	receiverID, _ := uuid.Parse(req.ReceiverID)

	caller := callerID(c)
	h.log.Info("creating movement", "caller_id", caller, "kind", req.Kind)

	movement, err := h.engine.Create(c.UserContext(), usecase.CreateInput{
		Amount:         req.Amount,
		Kind:           domain.MovementKind(req.Kind),
		ReceiverID:     receiverID,
		CallerID:       caller,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeDomainError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(movement)
}

// RevertMovement handles PUT /v1/movements/:id/revert.
func (h *Handler) RevertMovement(c *fiber.Ctx) error {
	movementID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_movement_id", "movement id must be a uuid")
	}

	h.log.Info("reverting movement", "movement_id", movementID)

	ok, err := h.engine.Revert(c.UserContext(), movementID)
	if err != nil {
		return writeDomainError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"success": ok})
}

// ListMovements handles GET /v1/accounts/:id/movements.
func (h *Handler) ListMovements(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid_account_id", "account id must be a uuid")
	}

	page := c.QueryInt("page", 0)
	limit := c.QueryInt("limit", 0)

	result, err := h.engine.List(c.UserContext(), accountID, page, limit)
	if err != nil {
		return writeDomainError(c, h.log, err)
	}

	return c.JSON(result)
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": message},
	})
}

// writeDomainError maps the engine's error kinds onto HTTP statuses.
func writeDomainError(c *fiber.Ctx, log *slog.Logger, err error) error {
	var status int
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = fiber.StatusBadRequest
	case domain.KindNotFound:
		status = fiber.StatusNotFound
	case domain.KindConflict:
		status = fiber.StatusConflict
	default:
		status = fiber.StatusInternalServerError
	}

	code := "internal"
	message := "internal error"
	var de *domain.Error
	if errors.As(err, &de) {
		code = de.Code
		if de.Kind != domain.KindInfrastructure {
			message = de.Message
		}
	}

	if status == fiber.StatusInternalServerError {
		log.Error("ledger operation failed", "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"code": code, "message": message},
	})
}
