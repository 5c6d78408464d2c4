package controller

import (
	"docchat-client/internal/dto"
	"docchat-client/internal/pkg/serverutils"
	"docchat-client/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	SignIn(ctx *fiber.Ctx) error
	SignOut(ctx *fiber.Ctx) error
}

type authController struct {
	identity service.IIdentityService
	chat     service.IChatService
}

func NewAuthController(identity service.IIdentityService, chat service.IChatService) IAuthController {
	return &authController{identity: identity, chat: chat}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth/v1")
	h.Post("/signin", c.SignIn)
	h.Post("/signout", serverutils.JwtMiddleware(c.identity), c.SignOut)
}

// SignIn takes a Supabase access token and loads that user's sessions.
func (c *authController) SignIn(ctx *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := c.identity.SignIn(ctx.UserContext(), req.AccessToken); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Signed in", c.chat.Snapshot()))
}

func (c *authController) SignOut(ctx *fiber.Ctx) error {
	c.identity.SignOut(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Signed out", nil))
}
