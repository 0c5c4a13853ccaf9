package user

import (
	"errors"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/user-management-backend/internal/apperr"
)

// envelope is the JSON response shape shared by every action.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// listEnvelope adds the pagination fields to the fetch_all response.
type listEnvelope struct {
	Success    bool   `json:"success"`
	Data       []User `json:"data"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the single actions endpoint. Dispatch is an explicit
// (method, action) table rather than branching inside one handler; guard runs
// on state-changing requests before anything else touches data.
func (h *Handler) Register(app *fiber.App, guard fiber.Handler) {
	get := map[string]fiber.Handler{
		"fetch_all": h.fetchAll,
		"fetch_one": h.fetchOne,
	}
	post := map[string]fiber.Handler{
		"create": h.create,
		"update": h.update,
		"delete": h.delete,
	}

	app.Get("/api/actions", dispatch(get))
	app.Post("/api/actions", guard, dispatch(post))
}

func dispatch(actions map[string]fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handler, ok := actions[c.Query("action")]; ok {
			return handler(c)
		}
		return respondError(c, apperr.New(apperr.KindBadRequest, "Invalid action"))
	}
}

func (h *Handler) fetchAll(c *fiber.Ctx) error {
	params := ListParams{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 0),
	}

	result, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(listEnvelope{
		Success:    true,
		Data:       result.Data,
		Page:       result.Page,
		Limit:      result.Limit,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) fetchOne(c *fiber.Ctx) error {
	id := c.QueryInt("id")
	if id <= 0 {
		return respondError(c, apperr.New(apperr.KindBadRequest, "Invalid ID"))
	}

	u, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(envelope{Success: true, Data: u})
}

func (h *Handler) create(c *fiber.Ctx) error {
	in := formInput(c)

	if err := h.service.Create(c.UserContext(), in, formImage(c)); err != nil {
		return respondError(c, err)
	}

	return c.JSON(envelope{Success: true, Message: "User created"})
}

func (h *Handler) update(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.FormValue("id"))
	in := formInput(c)
	removeImage := c.FormValue("remove_image") == "1"

	if err := h.service.Update(c.UserContext(), id, in, formImage(c), removeImage); err != nil {
		return respondError(c, err)
	}

	return c.JSON(envelope{Success: true, Message: "Updated successfully"})
}

func (h *Handler) delete(c *fiber.Ctx) error {
	var payload struct {
		ID int `json:"id"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, apperr.New(apperr.KindBadRequest, "Invalid ID"))
	}

	if err := h.service.Delete(c.UserContext(), payload.ID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(envelope{Success: true, Message: "Deleted"})
}

func formInput(c *fiber.Ctx) Input {
	return Input{
		Name:   c.FormValue("name"),
		Email:  c.FormValue("email"),
		Phone:  c.FormValue("phone"),
		Gender: c.FormValue("gender"),
	}
}

// formImage returns the uploaded profile image, or nil when the request
// carries none.
func formImage(c *fiber.Ctx) *multipart.FileHeader {
	file, err := c.FormFile("profile_image")
	if err != nil || file == nil || file.Filename == "" {
		return nil
	}
	return file
}

func respondError(c *fiber.Ctx, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(err, apperr.KindStorage, "Something went wrong")
	}
	return c.Status(statusFor(ae.Kind)).JSON(envelope{Success: false, Message: ae.Message})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindBadRequest:
		return fiber.StatusBadRequest
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindUnsupportedMedia:
		return fiber.StatusUnsupportedMediaType
	case apperr.KindAuth:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
