package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/emitter"
	"github.com/soundprediction/go-tabgraph/pkg/metrics"
	"github.com/soundprediction/go-tabgraph/pkg/server/dto"
	"github.com/soundprediction/go-tabgraph/pkg/store"
	"github.com/soundprediction/go-tabgraph/pkg/types"
	"github.com/soundprediction/go-tabgraph/pkg/utils"
)

// DefaultAllowedExtensions lists the upload extensions accepted when none are
// configured.
var DefaultAllowedExtensions = []string{".csv", ".tsv", ".xlsx"}

// ConversionOptions configures a ConversionHandler.
type ConversionOptions struct {
	UploadDir         string
	OutputDir         string
	DefaultFormat     string
	PublicBaseURL     string
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// ConversionHandler handles uploads, downloads and conversion lookups
type ConversionHandler struct {
	converter *tabgraph.Converter
	records   store.Store
	metrics   *metrics.Registry
	logger    *slog.Logger
	opts      ConversionOptions
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(
	converter *tabgraph.Converter,
	records store.Store,
	reg *metrics.Registry,
	logger *slog.Logger,
	opts ConversionOptions,
) *ConversionHandler {
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = DefaultAllowedExtensions
	}
	return &ConversionHandler{
		converter: converter,
		records:   records,
		metrics:   reg,
		logger:    logger,
		opts:      opts,
	}
}

// Upload handles POST /upload
//
// The request is a multipart form carrying one or more tables under "files"
// (or a single one under "file") and an optional "format" field.
func (h *ConversionHandler) Upload(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
				Error:   "upload_too_large",
				Message: fmt.Sprintf("uploads are limited to %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "no_files",
			Message: "no files uploaded",
		})
		return
	}

	for _, fh := range files {
		if ext := strings.ToLower(filepath.Ext(fh.Filename)); !slices.Contains(h.opts.AllowedExtensions, ext) {
			c.JSON(http.StatusUnsupportedMediaType, dto.ErrorResponse{
				Error: "unsupported_file_type",
				Message: fmt.Sprintf("unsupported file type %q for %s; allowed: %s",
					ext, fh.Filename, strings.Join(h.opts.AllowedExtensions, ", ")),
			})
			return
		}
	}

	paths := make([]string, 0, len(files))
	names := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := h.save(fh)
		if err != nil {
			h.logger.Error("failed to store upload", "file", fh.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "upload_failed",
				Message: "failed to store uploaded file",
			})
			return
		}
		paths = append(paths, path)
		names = append(names, filepath.Base(path))
		h.metrics.RecordInputFile(strings.ToLower(filepath.Ext(path)))
	}

	format := c.PostForm("format")
	if format == "" {
		format = h.opts.DefaultFormat
	}

	start := time.Now()
	result, err := h.converter.ConvertMany(c.Request.Context(), paths, h.opts.OutputDir, format)
	if err != nil {
		h.metrics.RecordConversion(string(emitter.NormalizeFormat(format)), metrics.StatusFailure, time.Since(start), 0, 0, 0)
		status := conversionStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("conversion failed", "files", names, "error", err)
		}
		c.JSON(status, dto.ErrorResponse{
			Error:   "conversion_failed",
			Message: err.Error(),
		})
		return
	}
	h.metrics.RecordConversion(string(result.Format), metrics.StatusSuccess, time.Since(start),
		result.NodeCount, result.EdgeCount, len(result.Diagnostics))

	resp := dto.UploadResponse{
		Message:     result.Summary(),
		Format:      result.Format,
		NodesURL:    h.downloadURL(c, result.NodesFile),
		EdgesURL:    h.downloadURL(c, result.EdgesFile),
		NodesFile:   result.NodesFile,
		EdgesFile:   result.EdgesFile,
		NodeCount:   result.NodeCount,
		EdgeCount:   result.EdgeCount,
		Diagnostics: result.Diagnostics,
	}

	rec := store.NewRecord(result, names)
	if err := h.records.Put(c.Request.Context(), rec); err != nil {
		// the files are written; only the lookup is lost
		h.logger.Warn("failed to store conversion record", "error", err)
	} else {
		resp.ID = rec.ID
	}

	c.JSON(http.StatusOK, resp)
}

// conversionStatus maps a conversion error to a response code: problems with
// the uploaded tables are the client's, anything else is the server's.
func conversionStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMalformedInput),
		errors.Is(err, types.ErrMissingIdentity),
		errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *ConversionHandler) save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	name := utils.SanitizeFilename(fh.Filename, "upload"+ext)
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	dst, path, err := utils.CreateUnique(h.opts.UploadDir, name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Download handles GET /download/:filename
func (h *ConversionHandler) Download(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "file not found",
		})
		return
	}

	path := filepath.Join(h.opts.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "file not found",
		})
		return
	}

	c.FileAttachment(path, name)
}

// GetConversion handles GET /api/conversions/:id
func (h *ConversionHandler) GetConversion(c *gin.Context) {
	rec, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "not_found",
				Message: "conversion not found or expired",
			})
			return
		}
		h.logger.Error("failed to read conversion record", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to read conversion record",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ConversionResponse{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt,
		Inputs:      rec.Inputs,
		Message:     rec.Message,
		Format:      rec.Format,
		NodesURL:    h.downloadURL(c, rec.NodesFile),
		EdgesURL:    h.downloadURL(c, rec.EdgesFile),
		NodeCount:   rec.NodeCount,
		EdgeCount:   rec.EdgeCount,
		Diagnostics: rec.Diagnostics,
	})
}

// downloadURL builds an absolute link to name, rooted at the configured
// public base URL or, failing that, at the host the request was sent to.
func (h *ConversionHandler) downloadURL(c *gin.Context, name string) string {
	base := strings.TrimSuffix(h.opts.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/download/" + url.PathEscape(name)
}
