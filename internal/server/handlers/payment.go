package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
)

// maxUploadSize bounds QR image uploads.
const maxUploadSize = 10 << 20

type PaymentHandler struct {
	app    AppService
	logger zerolog.Logger
}

func NewPaymentHandler(app AppService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{app: app, logger: logger}
}

func (h *PaymentHandler) ScanImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	header, err := c.FormFile("image")
	if err != nil {
		respondBadRequest(c, "Файл изображения обязателен")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, domain.NewError(domain.KindFileReadFailure, "", err))
		return
	}
	defer file.Close()

	reservation, err := h.app.ScanImage(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, domain.MsgQRRecognized, reservation)
}

type payloadRequest struct {
	Payload string `json:"payload" binding:"required"`
}

func (h *PaymentHandler) SubmitPayload(c *gin.Context) {
	var req payloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	reservation, err := h.app.SubmitPayload(c.Request.Context(), req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", reservation)
}

func (h *PaymentHandler) Reservation(c *gin.Context) {
	reservation := h.app.Reservation()
	if reservation == nil {
		respondError(c, domain.NewError(domain.KindNoReservation, "", nil))
		return
	}
	respondOK(c, "", reservation)
}

func (h *PaymentHandler) Confirm(c *gin.Context) {
	confirmation, err := h.app.ConfirmPayment(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, confirmation.Message, confirmation)
}

func (h *PaymentHandler) Cancel(c *gin.Context) {
	if err := h.app.CancelPayment(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, domain.MsgPaymentCancelled, nil)
}

func (h *PaymentHandler) Track(c *gin.Context) {
	id := domain.TxID(c.Param("id"))
	if id.IsZero() {
		respondBadRequest(c, "Transaction ID is required")
		return
	}
	h.app.TrackPayment(id)
	respondOK(c, "", gin.H{"transaction_id": id})
}
