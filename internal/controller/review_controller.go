package controller

import (
	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/serverutils"
	"docflash-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	Grade(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	State(ctx *fiber.Ctx) error
	Enroll(ctx *fiber.Ctx) error
	Due(ctx *fiber.Ctx) error
	Overdue(ctx *fiber.Ctx) error
}

type reviewController struct {
	reviewService service.IReviewService
}

func NewReviewController(reviewService service.IReviewService) IReviewController {
	return &reviewController{
		reviewService: reviewService,
	}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Get("due", c.Due)
	h.Get("overdue", c.Overdue)
	h.Post("grade", c.Grade)
	h.Post("document/:id/enroll", c.Enroll)
	h.Get("card/:id", c.State)
	h.Post("card/:id/reset", c.Reset)
}

func (c *reviewController) Grade(ctx *fiber.Ctx) error {
	var req dto.GradeCardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.NewValidation("body", err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.reviewService.Grade(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success grade card", res))
}

func (c *reviewController) Reset(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.reviewService.Reset(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success reset card", res))
}

func (c *reviewController) State(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.reviewService.State(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get card state", res))
}

func (c *reviewController) Enroll(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.reviewService.Enroll(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success enroll document", res))
}

func (c *reviewController) parseDue(ctx *fiber.Ctx) (*dto.DueCardsRequest, error) {
	var req dto.DueCardsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return nil, apperr.NewValidation("query", err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *reviewController) Due(ctx *fiber.Ctx) error {
	req, err := c.parseDue(ctx)
	if err != nil {
		return err
	}

	res, err := c.reviewService.Due(ctx.Context(), serverutils.UserID(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list due cards", res))
}

func (c *reviewController) Overdue(ctx *fiber.Ctx) error {
	req, err := c.parseDue(ctx)
	if err != nil {
		return err
	}

	res, err := c.reviewService.Overdue(ctx.Context(), serverutils.UserID(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list overdue cards", res))
}
