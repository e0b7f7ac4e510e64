package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rideshare/internal/domain"
	"rideshare/internal/service"
)

// WalletHandler handles HTTP requests for wallets.
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// TopUpRequest is the HTTP request body for a wallet top-up.
type TopUpRequest struct {
	Amount domain.Money `json:"amount"`
	Method string       `json:"method,omitempty"` // CARD (default) or CASH
}

// AmountRequest is the HTTP request body for freeze and unfreeze.
type AmountRequest struct {
	Amount domain.Money `json:"amount"`
}

// TopUpResponse is the HTTP response for a wallet top-up.
type TopUpResponse struct {
	Wallet  WalletResponse  `json:"wallet"`
	Payment PaymentResponse `json:"payment"`
}

// GetMyWallet handles GET /v1/me/wallet
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	wallet, err := h.walletService.GetOrCreate(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toWalletResponse(wallet))
}

// TopUp handles POST /v1/me/wallet/topup
func (h *WalletHandler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, payment, err := h.walletService.TopUp(c.Request.Context(), service.TopUpRequest{
		UserID: actorOf(c).UserID,
		Amount: req.Amount,
		Method: domain.PaymentMethod(strings.ToUpper(req.Method)),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, TopUpResponse{
		Wallet:  toWalletResponse(wallet),
		Payment: toPaymentResponse(payment),
	})
}

// Freeze handles POST /v1/wallets/:userId/freeze
func (h *WalletHandler) Freeze(c *gin.Context) {
	h.adjust(c, h.walletService.Freeze)
}

// Unfreeze handles POST /v1/wallets/:userId/unfreeze
func (h *WalletHandler) Unfreeze(c *gin.Context) {
	h.adjust(c, h.walletService.Unfreeze)
}

func (h *WalletHandler) adjust(c *gin.Context, op func(ctx context.Context, userID string, amount domain.Money) (*domain.Wallet, error)) {
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := op(c.Request.Context(), c.Param("userId"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toWalletResponse(wallet))
}
