package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "defect-inspector/internal/application"
	"defect-inspector/internal/container"
	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

const basePath = "/v1/inspections"

// maxImageSize ограничивает размер каждого загружаемого снимка.
const maxImageSize = 20 << 20

// JobResponse — представление задания в ответах API.
type JobResponse struct {
	ID          string                `json:"id"`
	Status      entity.JobStatus      `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
	DefectCount int                   `json:"defect_count"`
	Regions     []entity.DefectRegion `json:"regions,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   string                `json:"error_kind,omitempty"`
	ImageURL    string                `json:"image_url,omitempty"`
}

func newJobResponse(job *entity.Job) JobResponse {
	resp := JobResponse{
		ID:          job.ID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  job.FinishedAt,
		DefectCount: job.DefectCount,
		Regions:     job.Regions,
		Summary:     job.Summary,
		Error:       job.Error,
		ErrorKind:   job.ErrorKind,
	}
	if job.Status == entity.JobDone && len(job.Annotated) > 0 {
		resp.ImageURL = jobPath(job.ID) + "/image"
	}
	return resp
}

// Server обслуживает HTTP API асинхронных проверок.
type Server struct {
	dispatcher *app.Dispatcher
	jobs       port.JobStore
	defaults   entity.Params
	log        logrus.FieldLogger
}

// NewServer создаёт сервер поверх диспетчера контейнера.
func NewServer(c *container.Container) (*Server, error) {
	if c.Dispatcher == nil || c.Jobs == nil {
		return nil, errors.New("http api requires a job store")
	}
	return &Server{
		dispatcher: c.Dispatcher,
		jobs:       c.Jobs,
		defaults:   c.InspectionService.Params(),
		log:        c.Log.WithField("component", "http"),
	}, nil
}

// Router собирает gin.Engine со всеми маршрутами.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests(), cors())

	router.OPTIONS(basePath, func(c *gin.Context) {
		c.JSON(http.StatusOK, struct{}{})
	})
	router.POST(basePath, s.submit)
	router.GET(basePath+"/:id", s.status)
	router.GET(basePath+"/:id/image", s.image)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func (s *Server) submit(c *gin.Context) {
	template, err := readFormFile(c, "template")
	if err != nil {
		badRequest(c, err)
		return
	}
	test, err := readFormFile(c, "test")
	if err != nil {
		badRequest(c, err)
		return
	}

	params, err := s.parseParams(c.PostForm("params"))
	if err != nil {
		badRequest(c, err)
		return
	}

	job, err := s.dispatcher.Submit(c.Request.Context(), template, test, params)
	switch {
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrDispatcherStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Couldn't accept request - please try again later"})
		return
	case err != nil:
		s.log.WithError(err).Error("failed to submit job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Couldn't accept request - please try again later"})
		return
	}

	c.Header("Location", jobPath(job.ID))
	c.JSON(http.StatusAccepted, gin.H{"id": job.ID, "status": job.Status})
}

func (s *Server) status(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

func (s *Server) image(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	if job.Status != entity.JobDone || len(job.Annotated) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "annotated image is not available", "status": job.Status})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", job.Annotated)
}

func (s *Server) loadJob(c *gin.Context) (*entity.Job, bool) {
	job, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, port.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job is not found"})
		return nil, false
	}
	if err != nil {
		s.log.WithError(err).Error("failed to load job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Couldn't get status of request - please try again later"})
		return nil, false
	}
	return job, true
}

// parseParams накладывает JSON-объект на параметры по умолчанию.
func (s *Server) parseParams(raw string) (entity.Params, error) {
	params := s.defaults
	if raw == "" {
		return params, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return entity.Params{}, fmt.Errorf("%w: %v", entity.ErrInvalidParams, err)
	}
	if err := params.Validate(); err != nil {
		return entity.Params{}, err
	}
	return params, nil
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is missing", entity.ErrInvalidImage, field)
	}
	if header.Size > maxImageSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", entity.ErrInvalidImage, field, maxImageSize)
	}
	return readMultipart(header)
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_kind": entity.ErrorKind(err)})
}

func jobPath(id string) string {
	return basePath + "/" + id
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location")
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(started),
		}).Debug("request handled")
	}
}
