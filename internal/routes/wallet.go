package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/fxwallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, limiter fiber.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId", h.Get)
	r.Post("/wallets/:walletId/adjustbalance", limiter, h.AdjustBalance)
}
