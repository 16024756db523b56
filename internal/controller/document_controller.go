package controller

import (
	"io"
	"strconv"

	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/serverutils"
	"docflash-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reprocess(ctx *fiber.Ctx) error
	Chapters(ctx *fiber.Ctx) error
	Cards(ctx *fiber.Ctx) error
	Chapter(ctx *fiber.Ctx) error
	ChapterKnowledge(ctx *fiber.Ctx) error
	ChapterFigures(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
	maxUploadBytes  int64
}

func NewDocumentController(documentService service.IDocumentService, maxUploadBytes int64) IDocumentController {
	return &documentController{
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("", c.Upload)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Get(":id/status", c.Status)
	h.Delete(":id", c.Delete)
	h.Post(":id/reprocess", c.Reprocess)
	h.Get(":id/chapters", c.Chapters)
	h.Get(":id/cards", c.Cards)

	ch := r.Group("/chapter/v1")
	ch.Get(":id", c.Chapter)
	ch.Get(":id/knowledge", c.ChapterKnowledge)
	ch.Get(":id/figures", c.ChapterFigures)
}

// Upload takes a multipart form with the document under "file" and an
// optional "priority" flag.
func (c *documentController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperr.NewValidation("file", "missing file")
	}
	if c.maxUploadBytes > 0 && fileHeader.Size > c.maxUploadBytes {
		return fiber.ErrRequestEntityTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	priority, _ := strconv.ParseBool(ctx.FormValue("priority", "false"))
	req := dto.UploadDocumentRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
		Priority:    priority,
	}

	res, err := c.documentService.Upload(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued for processing", res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	var req dto.ListDocumentsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return apperr.NewValidation("query", err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.documentService.List(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list documents", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.Show(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.Status(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get document status", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.documentService.Delete(ctx.Context(), serverutils.UserID(ctx), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete document", nil))
}

func (c *documentController) Reprocess(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.ReprocessRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return apperr.NewValidation("body", err.Error())
		}
	}

	res, err := c.documentService.Reprocess(ctx.Context(), serverutils.UserID(ctx), id, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document requeued", res))
}

func (c *documentController) Chapters(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.Chapters(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list chapters", res))
}

func (c *documentController) Cards(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.Cards(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list cards", res))
}

func (c *documentController) Chapter(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.Chapter(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show chapter", res))
}

func (c *documentController) ChapterKnowledge(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.ChapterKnowledge(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list knowledge points", res))
}

func (c *documentController) ChapterFigures(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.documentService.ChapterFigures(ctx.Context(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list figures", res))
}
