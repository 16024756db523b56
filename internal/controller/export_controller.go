package controller

import (
	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/serverutils"
	"docflash-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IExportController interface {
	RegisterRoutes(r fiber.Router)
	Anki(ctx *fiber.Ctx) error
	Notion(ctx *fiber.Ctx) error
	Backup(ctx *fiber.Ctx) error
	Restore(ctx *fiber.Ctx) error
}

type exportController struct {
	exportService service.IExportService
}

func NewExportController(exportService service.IExportService) IExportController {
	return &exportController{
		exportService: exportService,
	}
}

func (c *exportController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/export/v1")
	h.Get("document/:id/anki", c.Anki)
	h.Get("document/:id/notion", c.Notion)
	h.Get("document/:id/backup", c.Backup)
	h.Post("restore", c.Restore)
}

func sendFile(ctx *fiber.Ctx, file *dto.ExportFile) error {
	ctx.Attachment(file.Filename)
	ctx.Set(fiber.HeaderContentType, file.ContentType)
	return ctx.Send(file.Data)
}

func (c *exportController) Anki(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	file, err := c.exportService.ExportAnki(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return sendFile(ctx, file)
}

func (c *exportController) Notion(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	file, err := c.exportService.ExportNotion(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return sendFile(ctx, file)
}

func (c *exportController) Backup(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	file, err := c.exportService.Backup(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return sendFile(ctx, file)
}

// Restore reads a JSONL backup from the "file" form field.
func (c *exportController) Restore(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperr.NewValidation("file", "missing file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := c.exportService.Restore(ctx.Context(), serverutils.UserID(ctx), file)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Backup restored", res))
}
