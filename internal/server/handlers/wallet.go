package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type WalletHandler struct {
	app    AppService
	logger zerolog.Logger
}

func NewWalletHandler(app AppService, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{app: app, logger: logger}
}

func (h *WalletHandler) User(c *gin.Context) {
	user, err := h.app.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", gin.H{"user": user, "balance": h.app.State().Balance()})
}

func (h *WalletHandler) Transactions(c *gin.Context) {
	txs, err := h.app.Wallet().Transactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", txs)
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	addr, err := h.app.Wallet().DepositAddress(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", addr)
}

func (h *WalletHandler) RefreshBalance(c *gin.Context) {
	resp, err := h.app.Wallet().RefreshBalance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp.Message, h.app.State().Balance())
}

type withdrawRequest struct {
	AmountSol     float64 `json:"amount_sol"`
	WalletAddress string  `json:"wallet_address"`
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	result, err := h.app.Wallet().RequestWithdrawal(c.Request.Context(), req.AmountSol, req.WalletAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result.Message, result)
}

func (h *WalletHandler) Rates(c *gin.Context) {
	rates, err := h.app.Wallet().ExchangeRates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", rates)
}

func (h *WalletHandler) Welcome(c *gin.Context) {
	respondOK(c, "", gin.H{"text": h.app.Wallet().WelcomeText(c.Request.Context())})
}
