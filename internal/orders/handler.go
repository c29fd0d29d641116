package orders

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
)

var validate = validator.New()

// Handler exposes order endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an order HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// View is the JSON shape of an order.
type View struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Data        map[string]any `json:"data"`
	Location    string         `json:"location"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	MasterID    *string        `json:"master_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ExpiresAt   time.Time      `json:"expiration_time"`
}

// ToView renders o for responses.
func ToView(o Order) View {
	return View{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Description: o.Description,
		Status:      o.Status,
		Priority:    o.Priority,
		Data:        o.Data,
		Location:    o.Location,
		Latitude:    o.Latitude,
		Longitude:   o.Longitude,
		MasterID:    o.MasterID,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		ExpiresAt:   o.ExpiresAt,
	}
}

type createRequest struct {
	Description string         `json:"description" validate:"required,max=2000"`
	Priority    string         `json:"priority" validate:"omitempty,oneof=low high"`
	Data        map[string]any `json:"data"`
	Location    string         `json:"location" validate:"required,max=255"`
	Latitude    *float64       `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64       `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	MasterID    *string        `json:"master_id" validate:"omitempty,uuid"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderResponse struct {
	Order View `json:"order"`
}

type listResponse struct {
	Orders []View `json:"orders"`
}

// Create handles order creation by a client.
func (h *Handler) Create(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, err.Error())
	}
	priority, err := ParsePriority(req.Priority)
	if err != nil {
		return mapError(err)
	}

	order, err := h.svc.Create(c.UserContext(), CreateInput{
		OwnerID:     account.ID,
		Description: req.Description,
		Priority:    priority,
		Data:        req.Data,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		MasterID:    req.MasterID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(orderResponse{Order: ToView(order)})
}

// List returns the caller's orders. Masters pass scope=open to see the
// pending orders they can still accept.
func (h *Handler) List(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	f := ListFilter{}
	switch c.Query("scope") {
	case "", "mine":
	case "open":
		f.Open = true
	default:
		return apperror.BadRequest("scope must be mine or open")
	}
	if raw := c.Query("status"); raw != "" {
		if f.Status, err = ParseStatus(raw); err != nil {
			return mapError(err)
		}
	}
	if raw := c.Query("priority"); raw != "" {
		if f.Priority, err = ParsePriority(raw); err != nil {
			return mapError(err)
		}
	}

	found, err := h.svc.List(c.UserContext(), account.ID, account.Role == identity.RoleMaster, f)
	if err != nil {
		return mapError(err)
	}
	resp := listResponse{Orders: make([]View, 0, len(found))}
	for _, o := range found {
		resp.Orders = append(resp.Orders, ToView(o))
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Get returns a single order visible to the caller.
func (h *Handler) Get(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	order, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	if !order.VisibleTo(account.ID, account.Role == identity.RoleMaster) {
		return mapError(ErrNotFound)
	}
	return c.Status(http.StatusOK).JSON(orderResponse{Order: ToView(order)})
}

// UpdateStatus moves the order to the requested status.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperror.BadRequest("status is required")
	}
	next, err := ParseStatus(req.Status)
	if err != nil {
		return mapError(err)
	}

	order, err := h.svc.UpdateStatus(c.UserContext(), c.Params("id"), account.ID, next)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(orderResponse{Order: ToView(order)})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperror.Wrap(err, http.StatusNotFound, apperror.KindNotFound, "order not found")
	case errors.Is(err, ErrForbidden):
		return apperror.Wrap(err, http.StatusForbidden, apperror.KindForbidden, "order belongs to another account")
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidOrder):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindInvalidTransition, err.Error())
	default:
		return err
	}
}
