package controller

import (
	"io"

	"docchat-client/internal/constant"
	"docchat-client/internal/dto"
	"docchat-client/internal/mapper"
	"docchat-client/internal/pkg/serverutils"
	"docchat-client/internal/service"
	"docchat-client/pkg/backend"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Snapshot(ctx *fiber.Ctx) error
	RefreshSessions(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	Activate(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	RequestUpload(ctx *fiber.Ctx) error
	DismissUpload(ctx *fiber.Ctx) error
	DismissError(ctx *fiber.Ctx) error
}

type chatController struct {
	service  service.IChatService
	identity serverutils.IdentityVerifier
}

func NewChatController(service service.IChatService, identity serverutils.IdentityVerifier) IChatController {
	return &chatController{service: service, identity: identity}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/workspace/v1")
	h.Use(serverutils.JwtMiddleware(c.identity))
	h.Get("", c.Snapshot)
	h.Post("/sessions/refresh", c.RefreshSessions)
	h.Post("/sessions", c.CreateSession)
	h.Delete("/sessions/:id", c.DeleteSession)
	h.Post("/sessions/:id/activate", c.Activate)
	h.Post("/sessions/:id/messages", c.Send)
	h.Post("/sessions/:id/documents", c.Upload)
	h.Post("/upload/request", c.RequestUpload)
	h.Post("/upload/dismiss", c.DismissUpload)
	h.Delete("/error", c.DismissError)
}

func sessionIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	return id, nil
}

func (c *chatController) Snapshot(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get workspace", c.service.Snapshot()))
}

func (c *chatController) RefreshSessions(ctx *fiber.Ctx) error {
	if _, err := c.service.RefreshSessions(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success refresh sessions", c.service.Snapshot()))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	session, err := c.service.CreateSession(ctx.UserContext())
	if err != nil {
		return err
	}
	res := dto.CreateSessionResponse{Session: mapper.SessionToView(session, session.Id.String())}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}
	if err := c.service.DeleteSession(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete session", nil))
}

func (c *chatController) Activate(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}
	if err := c.service.Activate(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success activate session", c.service.Snapshot()))
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	reply, err := c.service.Send(ctx.UserContext(), id, req.Text)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success send message", mapper.ChatMessageToView(reply)))
}

// Upload reads the multipart "files" field and forwards it as one batch.
func (c *chatController) Upload(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Expected multipart form")
	}

	headers := form.File[constant.UploadFormField]
	files := make([]backend.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		files = append(files, backend.File{Name: fh.Filename, Data: data})
	}

	ids, err := c.service.Upload(ctx.UserContext(), id, files)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success upload documents", dto.UploadDocumentsResponse{DocumentIds: ids}))
}

func (c *chatController) RequestUpload(ctx *fiber.Ctx) error {
	if err := c.service.RequestUpload(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Upload requested", nil))
}

func (c *chatController) DismissUpload(ctx *fiber.Ctx) error {
	if err := c.service.DismissUpload(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Upload dismissed", nil))
}

func (c *chatController) DismissError(ctx *fiber.Ctx) error {
	c.service.DismissError(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Error dismissed", nil))
}
