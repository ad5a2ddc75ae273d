package controller

import (
	"mime/multipart"

	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	UploadBatch(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	FilterOptions(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/api")
	h.Post("/upload", c.Upload)
	h.Post("/upload/batch", c.UploadBatch)
	h.Get("/documents", c.List)
	h.Get("/filters/options", c.FilterOptions)
	h.Delete("/documents", c.Delete)
}

// Upload accepts either a single "file" field or a "files" field with
// multiple parts. A single file reports its ingestion directly; several
// files fall through to the batch path.
func (c *documentController) Upload(ctx *fiber.Ctx) error {
	files := collectFiles(ctx)
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one file is required")
	}

	if len(files) == 1 {
		res, err := c.documentService.Upload(ctx.Context(), files[0])
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Document uploaded and ingested", res))
	}

	res, err := c.documentService.UploadBatch(ctx.Context(), files)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Batch upload processed", res))
}

func (c *documentController) UploadBatch(ctx *fiber.Ctx) error {
	files := collectFiles(ctx)
	res, err := c.documentService.UploadBatch(ctx.Context(), files)
	if err != nil {
		return err
	}

	message := "Batch upload succeeded"
	if len(res.Failed) > 0 {
		message = "Batch upload partially failed, see failed entries"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	res, err := c.documentService.List(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list documents", res))
}

func (c *documentController) FilterOptions(ctx *fiber.Ctx) error {
	res, err := c.documentService.FilterOptions(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get filter options", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	filename := ctx.Query("filename")
	res, err := c.documentService.Delete(ctx.Context(), filename)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Document deleted", res))
}

func collectFiles(ctx *fiber.Ctx) []*multipart.FileHeader {
	var files []*multipart.FileHeader

	if single, err := ctx.FormFile("file"); err == nil && single != nil {
		files = append(files, single)
	}

	if form, err := ctx.MultipartForm(); err == nil && form != nil {
		files = append(files, form.File["files"]...)
	}
	return files
}
