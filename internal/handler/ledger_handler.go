package handler

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/money"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/middleware"
	"github.com/eaglebank/ledger/shared/models"
)

// LedgerCommander defines the write-side operations used by LedgerHandler.
type LedgerCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
	ExecuteTransfer(context.Context, cqrs.ExecuteTransferCommand) (*models.Transfer, error)
}

// LedgerQuerier defines the read-side operations used by LedgerHandler.
type LedgerQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.Account, error)
	GetBalance(context.Context, cqrs.GetBalanceQuery) (decimal.Decimal, error)
	GetHistory(context.Context, cqrs.GetHistoryQuery) ([]models.Transfer, error)
	ListCustomerAccounts(context.Context, cqrs.ListCustomerAccountsQuery) ([]models.Account, error)
	ListCustomerTransfers(context.Context, cqrs.ListCustomerTransfersQuery) ([]models.Transfer, error)
}

type LedgerHandler struct {
	commands LedgerCommander
	queries  LedgerQuerier
	logger   *zap.Logger
}

func init() {
	middleware.RegisterCustomTypeFunc(func(v reflect.Value) any {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			return money.Float64(d)
		}
		return nil
	}, decimal.Decimal{})
}

// Amounts bind from JSON numbers or numeric strings. Sign and precision are
// checked by the ledger itself.
type CreateAccountRequest struct {
	CustomerID     *int             `json:"customer_id" validate:"required,gt=0"`
	InitialDeposit *decimal.Decimal `json:"initial_deposit" validate:"required,lte=1000000"`
}

type TransferRequest struct {
	FromAccountID  string           `json:"from_account_id" validate:"required,max=36"`
	ToAccountID    string           `json:"to_account_id" validate:"required,max=36"`
	TransferAmount *decimal.Decimal `json:"transfer_amount" validate:"required,lte=1000000"`
}

func NewLedgerHandler(commands LedgerCommander, queries LedgerQuerier, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{commands: commands, queries: queries, logger: logger}
}

// Register mounts the ledger routes on rg.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/accounts", h.CreateAccount)
	rg.GET("/accounts/:accountId", h.GetAccount)
	rg.GET("/accounts/:accountId/balance", h.GetBalance)
	rg.GET("/accounts/:accountId/transfers", h.GetHistory)
	rg.POST("/transfers", h.ExecuteTransfer)
	rg.GET("/customers/:customerId/accounts", h.ListCustomerAccounts)
	rg.GET("/customers/:customerId/transfers", h.ListCustomerTransfers)
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, middleware.ErrorCodeInvalidRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		CustomerID:     *req.CustomerID,
		InitialDeposit: *req.InitialDeposit,
	})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusCreated, "Account created successfully", models.NewAccountView(*account))
}

func (h *LedgerHandler) ExecuteTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, middleware.ErrorCodeInvalidRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	transfer, err := h.commands.ExecuteTransfer(c.Request.Context(), cqrs.ExecuteTransferCommand{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        *req.TransferAmount,
	})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusOK, "Transfer completed successfully", models.NewTransferView(*transfer))
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	account, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: c.Param("accountId")})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusOK, "Account retrieved successfully", models.NewAccountView(*account))
}

func (h *LedgerHandler) GetBalance(c *gin.Context) {
	accountID := c.Param("accountId")

	balance, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{AccountID: accountID})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusOK, "Balance retrieved successfully", models.NewBalanceView(accountID, balance))
}

func (h *LedgerHandler) GetHistory(c *gin.Context) {
	history, err := h.queries.GetHistory(c.Request.Context(), cqrs.GetHistoryQuery{AccountID: c.Param("accountId")})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusOK, "Transfer history retrieved successfully", models.NewTransferViews(history))
}

func (h *LedgerHandler) ListCustomerAccounts(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	accounts, err := h.queries.ListCustomerAccounts(c.Request.Context(), cqrs.ListCustomerAccountsQuery{CustomerID: customerID})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	views := make([]models.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, models.NewAccountView(a))
	}
	middleware.RespondWithSuccess(c, http.StatusOK, "Accounts retrieved successfully", views)
}

func (h *LedgerHandler) ListCustomerTransfers(c *gin.Context) {
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	transfers, err := h.queries.ListCustomerTransfers(c.Request.Context(), cqrs.ListCustomerTransfersQuery{CustomerID: customerID})
	if err != nil {
		h.respondWithLedgerError(c, err)
		return
	}

	middleware.RespondWithSuccess(c, http.StatusOK, "Transfers retrieved successfully", models.NewTransferViews(transfers))
}

func customerIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("customerId"))
	if err != nil || id <= 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, middleware.ErrorCodeInvalidRequest, "customerId must be a positive integer")
		return 0, false
	}
	return id, true
}

// respondWithLedgerError maps ledger failure kinds onto HTTP statuses.
func (h *LedgerHandler) respondWithLedgerError(c *gin.Context, err error) {
	var ledgerErr *apperr.Error
	if !errors.As(err, &ledgerErr) {
		h.logger.Error("unexpected ledger error", zap.String("path", c.FullPath()), zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Internal server error")
		return
	}

	code := string(ledgerErr.Kind)
	switch ledgerErr.Kind {
	case apperr.KindInvalidAmount:
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, code, err.Error())
	case apperr.KindSameAccountTransfer, apperr.KindInsufficientFunds:
		middleware.RespondWithError(c, http.StatusBadRequest, code, err.Error())
	case apperr.KindAccountNotFound:
		middleware.RespondWithError(c, http.StatusNotFound, code, err.Error())
	case apperr.KindLockTimeout:
		c.Header("Retry-After", "1")
		middleware.RespondWithError(c, http.StatusServiceUnavailable, code, "Account is busy, retry the request")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, middleware.ErrorCodeInternal, "Internal server error")
	}
}
