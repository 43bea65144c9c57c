package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"raffle/internal/bank"
	"raffle/internal/journal"
	"raffle/internal/models"
	"raffle/internal/services"
	"raffle/internal/vrf"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// HTTPHandler holds the dependencies for the HTTP handlers: the raffle
// service, the value ledger, the randomness coordinator harness and
// the event journal.
type HTTPHandler struct {
	service     *services.RaffleService
	ledger      *bank.Ledger
	coordinator *vrf.MockCoordinator
	journal     *journal.Journal
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.RaffleService, ledger *bank.Ledger, coordinator *vrf.MockCoordinator, jnl *journal.Journal) *HTTPHandler {
	return &HTTPHandler{
		service:     service,
		ledger:      ledger,
		coordinator: coordinator,
		journal:     jnl,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/enter", h.Enter)
	router.GET("/players/:index", h.GetPlayer)
	router.GET("/status", h.GetStatus)
	router.GET("/upkeep", h.CheckUpkeep)
	router.POST("/upkeep", h.PerformUpkeep)
	router.POST("/fulfill", h.Fulfill)
	router.GET("/events", h.GetEvents)
	router.POST("/accounts/:id/deposit", h.Deposit)
	router.GET("/accounts/:id", h.GetAccount)
}

type enterRequest struct {
	Player string `json:"player" binding:"required"`
	Amount uint64 `json:"amount"`
}

// Enter handles a participant's entry into the raffle.
func (h *HTTPHandler) Enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Enter(req.Player, req.Amount); err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientPayment):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrRaffleNotOpen):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, bank.ErrInsufficientFunds), errors.Is(err, bank.ErrUnknownAccount):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		default:
			logger.Errorf("Enter failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"player": req.Player,
		"pool":   h.service.Pool(),
		"slots":  h.service.PlayerCount(),
	})
}

// GetPlayer returns the entrant at the given slot index.
func (h *HTTPHandler) GetPlayer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	player, err := h.service.Player(index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "player": player})
}

// GetStatus reports the raffle's current round.
func (h *HTTPHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":            h.service.State().String(),
		"pool":             h.service.Pool(),
		"players":          h.service.Players(),
		"lastDrawTime":     h.service.LastDrawTime(),
		"pendingRequestId": h.service.PendingRequestID(),
		"entranceFee":      h.service.EntranceFee(),
	})
}

// CheckUpkeep reports whether a draw may be triggered.
func (h *HTTPHandler) CheckUpkeep(c *gin.Context) {
	needed, status := h.service.CheckUpkeep()
	c.JSON(http.StatusOK, gin.H{"needed": needed, "status": status})
}

// PerformUpkeep triggers a draw when the raffle is eligible.
func (h *HTTPHandler) PerformUpkeep(c *gin.Context) {
	requestID, err := h.service.PerformUpkeep(nil)
	if err != nil {
		var notNeeded *services.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			c.JSON(http.StatusConflict, gin.H{
				"error":       notNeeded.Error(),
				"pool":        notNeeded.Pool,
				"playerCount": notNeeded.PlayerCount,
				"state":       notNeeded.State.String(),
			})
			return
		}
		logger.Errorf("PerformUpkeep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": requestID})
}

type fulfillRequest struct {
	RequestID uint64   `json:"requestId" binding:"required"`
	Words     []string `json:"words"` // decimal big integers; empty: coordinator generates
}

// Fulfill drives the mock coordinator to deliver randomness for a
// pending request.
func (h *HTTPHandler) Fulfill(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var words []*big.Int
	for _, raw := range req.Words {
		w, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid random word: " + raw})
			return
		}
		words = append(words, w)
	}

	if err := h.coordinator.FulfillWithWords(req.RequestID, words); err != nil {
		if errors.Is(err, vrf.ErrNonexistentRequest) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("Fulfillment of request %d failed: %v", req.RequestID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": req.RequestID, "state": h.service.State().String()})
}

// GetEvents returns the most recent journal entries, oldest first.
func (h *HTTPHandler) GetEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	events, err := h.journal.Recent(limit)
	if err != nil {
		logger.Errorf("Failed to read journal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type depositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// Deposit funds a ledger account so it can pay entrance fees.
func (h *HTTPHandler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account := c.Param("id")
	h.ledger.Deposit(account, req.Amount)
	c.JSON(http.StatusOK, gin.H{"account": account, "balance": h.ledger.Balance(account)})
}

// GetAccount returns a ledger account's balance.
func (h *HTTPHandler) GetAccount(c *gin.Context) {
	account := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"account": account, "balance": h.ledger.Balance(account)})
}
