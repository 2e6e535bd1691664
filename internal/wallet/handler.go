package wallet

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return &Handler{service: service, validate: v}
}

type createRequest struct {
	StartingBalance decimal.Decimal `json:"startingBalance"`
	Currency        string          `json:"currency" validate:"required,len=3,alpha"`
}

type getQuery struct {
	Currency string `query:"currency" validate:"omitempty,len=3,alpha"`
}

type adjustQuery struct {
	Amount   string `query:"amount" validate:"required,numeric"`
	Currency string `query:"currency" validate:"required,len=3,alpha"`
	Strategy string `query:"strategy" validate:"required,oneof=AddFunds SubtractFunds ForceSubtractFunds"`
}

// Get returns a wallet, optionally converted to the currency query parameter.
func (h *Handler) Get(c *fiber.Ctx) error {
	var q getQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(q); err != nil {
		return validationError(err)
	}

	view, err := h.service.GetWallet(c.UserContext(), c.Params("walletId"), q.Currency)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Create opens a wallet with a starting balance.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	view, err := h.service.CreateWallet(c.UserContext(), CreateRequest{
		StartingBalance: req.StartingBalance,
		Currency:        req.Currency,
	})
	if err != nil {
		return toHTTPError(err)
	}
	c.Location("/api/v1/wallets/" + view.ID)
	return c.Status(http.StatusCreated).JSON(view)
}

// AdjustBalance applies a strategy with the amount, currency and strategy
// query parameters.
func (h *Handler) AdjustBalance(c *fiber.Ctx) error {
	var q adjustQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(q); err != nil {
		return validationError(err)
	}

	amount, err := decimal.NewFromString(q.Amount)
	if err != nil || !amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be a positive decimal")
	}
	kind, err := ParseKind(q.Strategy)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	view, err := h.service.AdjustBalance(c.UserContext(), AdjustRequest{
		WalletID: c.Params("walletId"),
		Kind:     kind,
		Amount:   amount,
		Currency: q.Currency,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

// StatusFor maps a facade outcome to an HTTP status code.
func StatusFor(outcome Outcome) int {
	switch outcome {
	case OutcomeNotFound:
		return http.StatusNotFound
	case OutcomeValidation:
		return http.StatusBadRequest
	case OutcomeBusiness:
		return http.StatusUnprocessableEntity
	case OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func toHTTPError(err error) error {
	var oe *OutcomeError
	if errors.As(err, &oe) {
		return fiber.NewError(StatusFor(oe.Kind), oe.Message)
	}
	return fiber.NewError(http.StatusInternalServerError, "internal error")
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
		return fiber.NewError(http.StatusBadRequest, "validation error: "+strings.Join(fields, ", "))
	}
	return fiber.NewError(http.StatusBadRequest, err.Error())
}
