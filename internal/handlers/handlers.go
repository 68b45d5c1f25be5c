package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/controller"
	"github.com/example/plantdoc/internal/diagnosis"
	"github.com/example/plantdoc/internal/logging"
	"github.com/example/plantdoc/internal/metrics"
	"github.com/example/plantdoc/internal/session"
	"github.com/example/plantdoc/internal/view"
)

// MaxUploadSize is the default upper bound for an uploaded image.
const MaxUploadSize = 10 << 20

// multipartOverhead is the room left in the request body for the boundaries
// and part headers around the image.
const multipartOverhead = 64 << 10

const controllerKey = "controller"

// HealthChecker probes the classification service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options carries the collaborators the routes depend on.
type Options struct {
	Sessions      *session.Store
	Metrics       *metrics.Metrics
	Health        HealthChecker
	Logger        *zap.Logger
	CookieName    string
	MaxUploadSize int64
}

type server struct {
	Options
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, opts Options) error {
	tmpl, err := view.Templates()
	if err != nil {
		return logging.NewOperationError("handlers.parse_templates", "", err)
	}
	router.SetHTMLTemplate(tmpl)

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = MaxUploadSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "plantdoc_session"
	}
	s := &server{Options: opts}

	router.GET("/health", s.health)
	if s.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
		router.GET("/api/metrics/summary", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.Metrics.Summary())
		})
	}

	pages := router.Group("/", s.sessionMiddleware())
	pages.GET("/", s.index)
	pages.POST("/select", onUploadPage, s.limitUpload(), s.selectImage)
	pages.POST("/drop", onUploadPage, s.limitUpload(), s.dropImage)
	pages.POST("/analyze", onUploadPage, s.analyze)
	pages.POST("/reset", s.reset)
	pages.GET("/api/state", s.state)
	return nil
}

func (s *server) health(c *gin.Context) {
	status := "ok"
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.Health.Health(ctx); err != nil {
			s.Logger.Warn("classification service health check failed", zap.Error(err))
			status = "unavailable"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "classifier": status})
}

// sessionMiddleware attaches the caller's controller, issuing a cookie for new sessions.
func (s *server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(s.CookieName)
		id, ctrl, created := s.Sessions.GetOrCreate(cookie)
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(s.CookieName, id, 0, "/", "", false, true)
		}
		c.Set(controllerKey, ctrl)
		c.Next()
	}
}

// limitUpload caps the request body. The image itself is checked against
// MaxUploadSize in readImage, once the multipart framing is stripped.
func (s *server) limitUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := s.MaxUploadSize + multipartOverhead
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// onUploadPage lets file and submit actions through only while the session
// shows the upload page; elsewhere the request just redirects home.
func onUploadPage(c *gin.Context) {
	if controllerFrom(c).State().Page != controller.PageUpload {
		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
		return
	}
	c.Next()
}

func controllerFrom(c *gin.Context) *controller.Controller {
	return c.MustGet(controllerKey).(*controller.Controller)
}

func (s *server) index(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "page.html", view.Build(controllerFrom(c).State()))
}

func (s *server) selectImage(c *gin.Context) {
	file, ok := s.readImage(c)
	if !ok {
		return
	}
	controllerFrom(c).SelectImage(file)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *server) dropImage(c *gin.Context) {
	file, ok := s.readImage(c)
	if !ok {
		return
	}
	if !controllerFrom(c).DropImage(file) {
		s.Logger.Debug("ignored non-image drop", zap.String("content_type", file.ContentType))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *server) analyze(c *gin.Context) {
	ctrl := controllerFrom(c)
	// the submit trigger is disabled while a request is in flight
	if !ctrl.State().IsLoading {
		if err := ctrl.Submit(c.Request.Context()); err != nil {
			s.Logger.Warn("submission failed", zap.Error(err))
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *server) reset(c *gin.Context) {
	controllerFrom(c).Reset()
	c.Redirect(http.StatusSeeOther, "/")
}

type stateResponse struct {
	Page             controller.Page            `json:"page"`
	Filename         string                     `json:"filename,omitempty"`
	HasFile          bool                       `json:"hasFile"`
	PreviewURI       string                     `json:"previewUri,omitempty"`
	IsLoading        bool                       `json:"isLoading"`
	Result           *diagnosis.Result          `json:"result"`
	SeverityCategory diagnosis.SeverityCategory `json:"severityCategory,omitempty"`
	ErrorMessage     string                     `json:"errorMessage,omitempty"`
}

func (s *server) state(c *gin.Context) {
	st := controllerFrom(c).State()
	resp := stateResponse{
		Page:         st.Page,
		HasFile:      st.SelectedFile != nil,
		PreviewURI:   st.PreviewURI,
		IsLoading:    st.IsLoading,
		Result:       st.Result,
		ErrorMessage: st.ErrorMessage,
	}
	if st.SelectedFile != nil {
		resp.Filename = st.SelectedFile.Name
	}
	if st.Result != nil {
		resp.SeverityCategory = diagnosis.ClassifySeverity(st.Result.Severity)
	}
	c.JSON(http.StatusOK, resp)
}

// readImage extracts the "image" part. It writes the error response itself
// and reports false when there is nothing to hand to the controller.
func (s *server) readImage(c *gin.Context) (*controller.ImageFile, bool) {
	header, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return nil, false
	}
	if header.Size > s.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}

	data, err := readPart(header)
	if err != nil {
		s.Logger.Error("failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return nil, false
	}

	return &controller.ImageFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
