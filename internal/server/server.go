package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core"
	"github.com/agenthands/scrivener/internal/core/align"
	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/dossier"
	"github.com/agenthands/scrivener/internal/jobs"
	"github.com/agenthands/scrivener/internal/store"
)

type Server struct {
	scriv    *core.Scrivener
	jobs     *jobs.Dispatcher
	validate *validator.Validate
	log      *logrus.Entry
}

func NewServer(scriv *core.Scrivener, dispatcher *jobs.Dispatcher) *Server {
	return &Server{
		scriv:    scriv,
		jobs:     dispatcher,
		validate: validator.New(),
		log:      logrus.WithField("component", "server"),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/dossiers", s.CreateDossier)
	r.GET("/dossiers", s.ListDossiers)
	r.GET("/dossiers/:id/view", s.StitchedView)
	r.GET("/dossiers/:id/export", s.Export)

	r.POST("/dossiers/:id/transcriptions", s.SubmitTranscription)
	r.GET("/jobs/:id", s.JobStatus)

	r.GET("/dossiers/:id/transcriptions/:tid/alignment", s.Alignment)
	r.POST("/dossiers/:id/transcriptions/:tid/edits", s.SaveEdit)
	r.POST("/dossiers/:id/transcriptions/:tid/revert", s.Revert)
	r.GET("/dossiers/:id/transcriptions/:tid/versions/:which", s.GetVersion)
	r.GET("/dossiers/:id/transcriptions/:tid/head", s.GetHead)

	r.GET("/events", s.Events)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

func slotRefFrom(c *gin.Context) model.SlotRef {
	return model.SlotRef{DossierID: c.Param("id"), TranscriptionID: c.Param("tid")}
}

type CreateDossierRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

func (s *Server) CreateDossier(c *gin.Context) {
	var req CreateDossierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	d, err := s.scriv.Dossiers.CreateDossier(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to create dossier"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": d})
}

func (s *Server) ListDossiers(c *gin.Context) {
	dossiers, err := s.scriv.Dossiers.ListDossiers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to list dossiers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": dossiers})
}

func (s *Server) StitchedView(c *gin.Context) {
	sections, err := s.scriv.StitchedView(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to assemble view"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": sections})
}

func (s *Server) Export(c *gin.Context) {
	data, contentType, err := s.scriv.ExportDossier(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "text"))
	if err != nil {
		if errors.Is(err, dossier.ErrDossierNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "dossier not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// SubmitTranscription accepts a multipart page image and queues the engine
// fan-out as a job; the response carries the job ID to poll.
func (s *Server) SubmitTranscription(c *gin.Context) {
	dossierID := c.Param("id")

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing image file"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unreadable image file"})
		return
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unreadable image file"})
		return
	}
	hint := c.PostForm("hint")

	jobID, err := s.jobs.Submit(func(ctx context.Context) (interface{}, error) {
		return s.scriv.TranscribeImage(ctx, dossierID, image, hint)
	})
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "transcription queue is full, try again later"})
			return
		}
		if errors.Is(err, jobs.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "server is shutting down"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to queue transcription"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success", "data": gin.H{"job_id": jobID}})
}

func (s *Server) JobStatus(c *gin.Context) {
	job, ok := s.jobs.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": job})
}

// Alignment returns the consensus with per-word confidence. When every slot
// failed, the response degrades to the plain HEAD text of the requested
// transcription with no confidence data, never a partial result.
func (s *Server) Alignment(c *gin.Context) {
	ref := slotRefFrom(c)

	result, err := s.scriv.GetAlignment(c.Request.Context(), ref.DossierID, ref.TranscriptionID)
	if err != nil {
		if errors.Is(err, align.ErrAlignmentUnavailable) {
			text, readErr := s.scriv.Store.MaterializedHeadCopy(c.Request.Context(), ref)
			if readErr != nil {
				text = ""
			}
			c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
				"alignment_available": false,
				"text":                text,
			}})
			return
		}
		if errors.Is(err, dossier.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no redundancy group for transcription"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to compute alignment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"alignment_available": true,
		"consensus_text":      result.ConsensusText,
		"words":               result.Words,
	}})
}

type SaveEditRequest struct {
	Text string `json:"text" validate:"required"`
}

func (s *Server) SaveEdit(c *gin.Context) {
	var req SaveEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "text is required"})
		return
	}

	ref := slotRefFrom(c)
	if err := s.scriv.SaveEdit(c.Request.Context(), ref, req.Text); err != nil {
		// A dropped edit must never look saved.
		s.log.WithField("slot", ref.String()).WithError(err).Error("save failed")
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "transcription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to save edit; your changes were not persisted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type RevertRequest struct {
	Purge bool `json:"purge"`
}

func (s *Server) Revert(c *gin.Context) {
	var req RevertRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body"})
		return
	}

	ref := slotRefFrom(c)
	if err := s.scriv.Revert(c.Request.Context(), ref, req.Purge); err != nil {
		s.log.WithField("slot", ref.String()).WithError(err).Error("revert failed")
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "transcription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to revert; the document is unchanged"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) GetVersion(c *gin.Context) {
	which := store.Version(c.Param("which"))
	if which != store.V1 && which != store.V2 && which != store.Head {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "version must be v1, v2 or head"})
		return
	}

	text, err := s.scriv.Store.GetVersion(c.Request.Context(), slotRefFrom(c), which)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "version not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to read version"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"text": text}})
}

func (s *Server) GetHead(c *gin.Context) {
	head, err := s.scriv.Store.Head(c.Request.Context(), slotRefFrom(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "transcription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to read head"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"head": head}})
}

// Events streams scoped bus events over SSE. A dossier scope is required:
// firehose subscriptions would reintroduce the broad "refresh everything"
// pattern the bus exists to prevent.
func (s *Server) Events(c *gin.Context) {
	dossierID := c.Query("dossier")
	if dossierID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "dossier query parameter is required"})
		return
	}
	scope := dossier.Scope{DossierID: dossierID, TranscriptionID: c.Query("transcription")}

	ch, cancel := s.scriv.Events.Subscribe(scope)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
