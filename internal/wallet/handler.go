package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID      string `json:"owner_id"`
	Address      string `json:"address"`
	CurrencyType string `json:"currency_type"`
}

type walletResponse struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Address      string          `json:"address"`
	CurrencyType string          `json:"currency_type"`
	Amount       decimal.Decimal `json:"amount"`
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:           string(w.ID),
		OwnerID:      w.OwnerID,
		Address:      w.Address,
		CurrencyType: w.CurrencyType,
		Amount:       w.Amount,
	}
}

// Create provisions a wallet for the given owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:      req.OwnerID,
		Address:      req.Address,
		CurrencyType: req.CurrencyType,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// Balance returns the spendable balance for the wallet bound to an address.
func (h *Handler) Balance(c *fiber.Ctx) error {
	w, err := h.service.GetByAddress(c.UserContext(), c.Params("account"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"address":  w.Address,
		"currency": w.CurrencyType,
		"amount":   w.Amount,
	})
}

// Deposit credits spendable balance on the wallet bound to an address.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Params("amount"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	w, err := h.service.Deposit(c.UserContext(), c.Params("account"), amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "amount added successfully",
		"amount":  w.Amount,
	})
}
