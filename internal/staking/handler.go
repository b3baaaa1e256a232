package staking

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// Handler exposes staking HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a staking HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createStakeRequest struct {
	UserID       string          `json:"user_id"`
	WalletID     string          `json:"wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	DurationDays int             `json:"duration"`
	StakeType    string          `json:"stake_type"`
	Network      string          `json:"network"`
}

type stakeResponse struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"wallet_id"`
	UserID       string          `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Rewards      decimal.Decimal `json:"rewards"`
	DurationDays int             `json:"duration"`
	Type         string          `json:"type"`
	Network      string          `json:"network"`
	Status       string          `json:"status"`
	StakeDate    time.Time       `json:"stake_date"`
}

func toStakeResponse(s Stake) stakeResponse {
	return stakeResponse{
		ID:           string(s.ID),
		WalletID:     string(s.WalletID),
		UserID:       s.UserID,
		Amount:       s.Amount,
		Rewards:      s.Rewards,
		DurationDays: s.DurationDays,
		Type:         string(s.Type),
		Network:      s.Network,
		Status:       string(s.Status),
		StakeDate:    s.StakeDate,
	}
}

// Create locks a wallet balance into a new stake.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createStakeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	stake, err := h.service.CreateStake(c.UserContext(), CreateStakeInput{
		UserID:       req.UserID,
		WalletID:     wallet.ID(req.WalletID),
		Amount:       req.Amount,
		DurationDays: req.DurationDays,
		Type:         Type(req.StakeType),
		Network:      req.Network,
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "staking successful",
		"stake":   toStakeResponse(stake),
	})
}

type withdrawRequest struct {
	Account string `json:"account"`
}

// Withdraw settles the active stake bound to a wallet address.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Withdraw(c.UserContext(), req.Account)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ErrNoActiveStake):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":      "withdraw processed",
		"stake_id":     string(res.StakeID),
		"status":       string(res.Status),
		"matured":      res.Matured,
		"principal":    res.Principal,
		"rewards_paid": res.RewardsPaid,
		"credited":     res.Credited,
	})
}

// List returns all stakes, optionally filtered by type.
func (h *Handler) List(c *fiber.Ctx) error {
	filter := Filter{}
	if t := c.Query("type"); t != "" {
		filter.Type = Type(t)
	}
	stakes, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(stakeResponses(stakes))
}

// ListByUser returns the stakes created by a user.
func (h *Handler) ListByUser(c *fiber.Ctx) error {
	stakes, err := h.service.List(c.UserContext(), Filter{UserID: c.Params("userId")})
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(stakeResponses(stakes))
}

// StakedAmount returns the principal locked in the active stake for a wallet
// address.
func (h *Handler) StakedAmount(c *fiber.Ctx) error {
	amount, err := h.service.StakedAmount(c.UserContext(), c.Params("account"))
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ErrNoActiveStake):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"amount": amount})
}

func stakeResponses(stakes []Stake) []stakeResponse {
	out := make([]stakeResponse, 0, len(stakes))
	for _, s := range stakes {
		out = append(out, toStakeResponse(s))
	}
	return out
}
