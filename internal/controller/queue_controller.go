package controller

import (
	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/serverutils"
	"docflash-be/internal/service"
	"docflash-be/pkg/queue"

	"github.com/gofiber/fiber/v2"
)

type IQueueController interface {
	RegisterRoutes(r fiber.Router)
	Enqueue(ctx *fiber.Ctx) error
	Job(ctx *fiber.Ctx) error
	JobForDocument(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type queueController struct {
	queueService service.IQueueService
}

func NewQueueController(queueService service.IQueueService) IQueueController {
	return &queueController{
		queueService: queueService,
	}
}

func (c *queueController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/queue/v1")
	h.Get("health", c.Health)
	h.Post("jobs", c.Enqueue)
	h.Get("jobs/:id", c.Job)
	h.Post("jobs/:id/cancel", c.Cancel)
	h.Get("document/:id", c.JobForDocument)
}

func (c *queueController) Enqueue(ctx *fiber.Ctx) error {
	var req dto.EnqueueRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.NewValidation("body", err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.queueService.Enqueue(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Job queued", res))
}

func (c *queueController) Job(ctx *fiber.Ctx) error {
	res, err := c.queueService.Job(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get job", res))
}

func (c *queueController) JobForDocument(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.queueService.JobForDocument(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get job", res))
}

func (c *queueController) Cancel(ctx *fiber.Ctx) error {
	res, err := c.queueService.Cancel(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Cancel requested", res))
}

// Health answers 503 when the broker is unreachable so load balancers can
// act on the status code alone.
func (c *queueController) Health(ctx *fiber.Ctx) error {
	res := c.queueService.Health(ctx.Context())
	if res.Status == string(queue.Unavailable) {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.Response[*dto.QueueHealthResponse]{
			Success: false,
			Code:    fiber.StatusServiceUnavailable,
			Message: "Queue unavailable",
			Data:    res,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Queue health", res))
}
