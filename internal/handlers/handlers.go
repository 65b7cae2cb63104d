package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/leafdoctor/internal/auth"
	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/inference"
	"github.com/example/leafdoctor/internal/logging"
	"github.com/example/leafdoctor/internal/usecase"
)

// MaxUploadSize is the largest accepted image, in bytes.
const MaxUploadSize = imageprocessor.MaxUploadSize

// multipartOverhead leaves room for form boundaries and extra fields.
const multipartOverhead = 64 << 10

// DiagnosisService is the use case surface the routes depend on.
type DiagnosisService interface {
	Diagnose(ctx context.Context, userID string, upload usecase.Upload) (*usecase.Report, error)
	GetResult(ctx context.Context, userID, requestID string) (*usecase.Report, error)
	GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error)
	History(ctx context.Context, userID string, limit int) ([]*usecase.Report, error)
	ShareText(ctx context.Context, userID, requestID, link string) (string, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
	Mode() inference.Source
	Labels() []diagnosis.Label
}

// Options tune route behaviour.
type Options struct {
	// PublicURL prefixes links in share text; empty omits the link.
	PublicURL string
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc DiagnosisService, authMiddleware gin.HandlerFunc, opts Options) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"mode":   svc.Mode(),
			"labels": svc.Labels(),
		})
	})

	authorized := router.Group("/")
	authorized.Use(authMiddleware)

	authorized.POST("/diagnose", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

		file, err := c.FormFile("image")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(c, imageprocessor.ErrTooLarge)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}

		contentType := file.Header.Get("Content-Type")
		if err := imageprocessor.Validate(contentType, file.Size); err != nil {
			writeError(c, err)
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		enhance, _ := strconv.ParseBool(c.PostForm("enhance"))
		report, err := svc.Diagnose(c.Request.Context(), userID, usecase.Upload{
			ContentType: contentType,
			Data:        data,
			Enhance:     enhance,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, report)
	})

	authorized.GET("/result/:id", func(c *gin.Context) {
		userID, requestID, ok := identify(c)
		if !ok {
			return
		}
		report, err := svc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	authorized.GET("/result/:id/duplicates", func(c *gin.Context) {
		userID, requestID, ok := identify(c)
		if !ok {
			return
		}
		report, err := svc.GetDuplicateReport(c.Request.Context(), userID, requestID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"request":    report.Request,
			"duplicates": report.Duplicates,
		})
	})

	authorized.GET("/result/:id/share", func(c *gin.Context) {
		userID, requestID, ok := identify(c)
		if !ok {
			return
		}
		link := ""
		if opts.PublicURL != "" {
			link = strings.TrimRight(opts.PublicURL, "/") + "/result/" + requestID
		}
		text, err := svc.ShareText(c.Request.Context(), userID, requestID, link)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"title": "Tomato Leaf Diagnosis Report", "text": text, "url": link})
	})

	authorized.GET("/history", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		reports, err := svc.History(c.Request.Context(), userID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"diagnoses": reports})
	})

	authorized.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func identify(c *gin.Context) (string, string, bool) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", "", false
	}
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return "", "", false
	}
	return userID, requestID, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, imageprocessor.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image size should be less than 5MB"})
	case errors.Is(err, imageprocessor.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "please upload a JPG or PNG image file"})
	case errors.Is(err, imageprocessor.ErrEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is empty"})
	case errors.Is(err, usecase.ErrUnableToAnalyze):
		c.JSON(http.StatusUnprocessableEntity, errorBody(usecase.ErrUnableToAnalyze.Error(), err))
	case errors.Is(err, usecase.ErrInProgress):
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody("internal error", err))
	}
}

// errorBody adds the failing request id, when known, so clients can quote it.
func errorBody(message string, err error) gin.H {
	body := gin.H{"error": message}
	if id := logging.RequestIDOf(err); id != "" {
		body["request_id"] = id
	}
	return body
}
