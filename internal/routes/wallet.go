package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:account/balance", h.Balance)
	r.Post("/wallets/:account/deposit/:amount", h.Deposit)
}
