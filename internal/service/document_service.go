package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/entity"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/repository/contract"
	"ai-docqa-be/pkg/rag/retrieve"
	"ai-docqa-be/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// splitterProfile is the rune-based chunking applied to one file class.
// Denser formats (tabular, markup) get smaller chunks so a single row or
// element does not dominate a retrieval hit.
type splitterProfile struct {
	chunkSize int
	overlap   int
}

var (
	textExtensions = map[string]bool{
		"txt": true, "md": true, "csv": true, "json": true, "xml": true, "html": true, "log": true,
	}
	imageExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true, "tiff": true,
	}
	binaryExtensions = map[string]bool{
		"pdf": true, "doc": true, "docx": true, "ppt": true, "pptx": true, "xls": true, "xlsx": true,
	}

	splitterProfiles = map[string]splitterProfile{
		"md":   {chunkSize: 600, overlap: 150},
		"txt":  {chunkSize: 600, overlap: 150},
		"log":  {chunkSize: 600, overlap: 150},
		"csv":  {chunkSize: 450, overlap: 120},
		"json": {chunkSize: 450, overlap: 120},
		"xml":  {chunkSize: 450, overlap: 120},
		"html": {chunkSize: 450, overlap: 120},
	}
	defaultSplitterProfile = splitterProfile{chunkSize: 600, overlap: 150}
)

type IDocumentService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (*dto.UploadDocumentResponse, error)
	UploadBatch(ctx context.Context, files []*multipart.FileHeader) (*dto.BatchUploadDocumentResponse, error)
	List(ctx context.Context) ([]*dto.DocumentInfoResponse, error)
	FilterOptions(ctx context.Context) (*dto.FilterOptionsResponse, error)
	Delete(ctx context.Context, filename string) (*dto.DeleteDocumentResponse, error)
}

type documentService struct {
	chunkRepository  contract.DocumentChunkRepository
	publisherService IPublisherService
	uploadDir        string
	logger           logger.ILogger
}

func NewDocumentService(
	chunkRepository contract.DocumentChunkRepository,
	publisherService IPublisherService,
	uploadDir string,
	logger logger.ILogger,
) IDocumentService {
	return &documentService{
		chunkRepository:  chunkRepository,
		publisherService: publisherService,
		uploadDir:        uploadDir,
		logger:           logger,
	}
}

func (s *documentService) Upload(ctx context.Context, file *multipart.FileHeader) (*dto.UploadDocumentResponse, error) {
	return s.ingestSingleFile(ctx, file)
}

func (s *documentService) UploadBatch(ctx context.Context, files []*multipart.FileHeader) (*dto.BatchUploadDocumentResponse, error) {
	if len(files) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "at least one file is required")
	}

	resp := &dto.BatchUploadDocumentResponse{}
	for _, file := range files {
		uploaded, err := s.ingestSingleFile(ctx, file)
		if err != nil {
			name := "unknown"
			if file != nil {
				name = file.Filename
			}
			resp.Failed = append(resp.Failed, dto.BatchUploadFailure{
				Filename: name,
				Reason:   err.Error(),
			})
			continue
		}
		resp.Uploaded = append(resp.Uploaded, *uploaded)
	}
	return resp, nil
}

func (s *documentService) ingestSingleFile(ctx context.Context, file *multipart.FileHeader) (*dto.UploadDocumentResponse, error) {
	if file == nil || file.Size <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file is empty")
	}

	originalName := filepath.Base(strings.TrimSpace(file.Filename))
	if originalName == "" || originalName == "." {
		return nil, fiber.NewError(fiber.StatusBadRequest, "filename is required")
	}

	ext := extensionOf(originalName)
	if err := checkExtension(ext); err != nil {
		return nil, err
	}

	storedName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), originalName)
	storedPath := filepath.Join(s.uploadDir, storedName)
	if err := saveMultipartFile(file, storedPath); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}

	chunks, err := s.splitStoredFile(storedPath, storedName, ext)
	if err != nil {
		// Keep uploads/ consistent with vector_store: a file that produced no
		// chunks must not linger on disk.
		if cleanupErr := os.Remove(storedPath); cleanupErr != nil {
			s.logger.Warn("DocumentService", "failed to remove rejected upload", map[string]interface{}{
				"path":  storedPath,
				"error": cleanupErr.Error(),
			})
		}
		return nil, err
	}

	if err := s.chunkRepository.CreateBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	payload, err := json.Marshal(dto.PublishEmbedChunksMessage{Source: storedName})
	if err != nil {
		return nil, err
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		return nil, fmt.Errorf("publish embed message: %w", err)
	}

	s.logger.Info("DocumentService", "document ingested", map[string]interface{}{
		"filename": originalName,
		"storedAs": storedName,
		"chunks":   len(chunks),
	})

	return &dto.UploadDocumentResponse{
		Filename:   originalName,
		StoredAs:   storedName,
		ChunkCount: len(chunks),
	}, nil
}

func (s *documentService) splitStoredFile(storedPath, storedName, ext string) ([]*entity.DocumentChunk, error) {
	raw, err := os.ReadFile(storedPath)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file has no text content")
	}

	profile, ok := splitterProfiles[ext]
	if !ok {
		profile = defaultSplitterProfile
	}

	pieces := utils.SplitText(content, profile.chunkSize, profile.overlap)
	chunks := make([]*entity.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, &entity.DocumentChunk{
			Id:   uuid.New(),
			Text: piece,
			Metadata: map[string]string{
				"source":     storedName,
				"fileType":   ext,
				"chunkIndex": strconv.Itoa(i),
			},
			CreatedAt: time.Now(),
		})
	}

	if len(chunks) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file could not be split into usable text")
	}
	return chunks, nil
}

func (s *documentService) List(ctx context.Context) ([]*dto.DocumentInfoResponse, error) {
	counts, err := s.chunkRepository.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	documents := make([]*dto.DocumentInfoResponse, len(counts))
	for i, c := range counts {
		documents[i] = &dto.DocumentInfoResponse{
			Id:         i + 1,
			Filename:   retrieve.ReadableFileName(c.Source),
			FullPath:   c.Source,
			ChunkCount: c.ChunkCount,
		}
	}
	return documents, nil
}

func (s *documentService) FilterOptions(ctx context.Context) (*dto.FilterOptionsResponse, error) {
	documents, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	sourceSet := map[string]bool{}
	typeSet := map[string]bool{}
	for _, d := range documents {
		if d.Filename == "" {
			continue
		}
		sourceSet[d.Filename] = true
		if ext := extensionOf(d.Filename); ext != "" {
			typeSet[ext] = true
		}
	}

	resp := &dto.FilterOptionsResponse{
		SourceFiles: make([]string, 0, len(sourceSet)),
		FileTypes:   make([]string, 0, len(typeSet)),
	}
	for source := range sourceSet {
		resp.SourceFiles = append(resp.SourceFiles, source)
	}
	for fileType := range typeSet {
		resp.FileTypes = append(resp.FileTypes, fileType)
	}
	sort.Strings(resp.SourceFiles)
	sort.Strings(resp.FileTypes)
	return resp, nil
}

func (s *documentService) Delete(ctx context.Context, filename string) (*dto.DeleteDocumentResponse, error) {
	normalized := filepath.Base(strings.TrimSpace(filename))
	if normalized == "" || normalized == "." {
		return nil, fiber.NewError(fiber.StatusBadRequest, "filename is required")
	}

	deletedChunks, err := s.chunkRepository.DeleteBySource(ctx, normalized)
	if err != nil {
		return nil, err
	}

	deletedFiles := 0
	entries, err := os.ReadDir(s.uploadDir)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if name != normalized && !strings.HasSuffix(name, "_"+normalized) {
				continue
			}
			if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil {
				s.logger.Warn("DocumentService", "failed to remove stored file", map[string]interface{}{
					"file":  name,
					"error": err.Error(),
				})
				continue
			}
			deletedFiles++
		}
	}

	return &dto.DeleteDocumentResponse{
		Filename:      normalized,
		DeletedChunks: deletedChunks,
		DeletedFiles:  deletedFiles,
	}, nil
}

func checkExtension(ext string) error {
	switch {
	case textExtensions[ext]:
		return nil
	case imageExtensions[ext]:
		return fiber.NewError(fiber.StatusBadRequest,
			"image files need OCR before they can be used for text Q&A; convert to PDF/TXT with a text layer first")
	case binaryExtensions[ext]:
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("cannot extract text from .%s files; convert to a plain-text format first", ext))
	default:
		return fiber.NewError(fiber.StatusBadRequest,
			"unsupported file type; supported: txt, md, csv, json, xml, html, log")
	}
}

func extensionOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.TrimPrefix(ext, ".")
}

func saveMultipartFile(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
