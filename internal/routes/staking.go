package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartvenkatesh/new-staking/internal/staking"
)

// RegisterStakingRoutes wires stake lifecycle endpoints.
func RegisterStakingRoutes(r fiber.Router, h *staking.Handler) {
	r.Post("/stake", h.Create)
	r.Post("/withdraw", h.Withdraw)
	r.Get("/stakes", h.List)
	r.Get("/users/:userId/stakes", h.ListByUser)
	r.Get("/wallets/:account/staked", h.StakedAmount)
}
