package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/media"
	"github.com/Skufu/GoTriage/internal/models"
	"github.com/Skufu/GoTriage/internal/service"
	"github.com/Skufu/GoTriage/internal/store"
)

type handlers struct {
	records   Records
	log       *zap.Logger
	maxUpload int64
}

func (h *handlers) home(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{"Title": "Community Health Triage"})
}

func (h *handlers) recordForm(c *gin.Context) {
	c.HTML(http.StatusOK, "record.html", gin.H{"Title": "New Patient Record"})
}

func (h *handlers) analyze(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Upload is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid form submission"})
		return
	}

	in := service.SubmitInput{
		Patient: models.PatientInfo{
			Name:   strings.TrimSpace(c.PostForm("patient_name")),
			Age:    service.ParseAge(c.PostForm("age")),
			Gender: strings.TrimSpace(c.PostForm("gender")),
		},
		Symptoms: strings.TrimSpace(c.PostForm("symptoms_text")),
		Image:    h.formUpload(c, "image_file"),
		Voice:    h.formUpload(c, "voice_file"),
	}

	id, err := h.records.Submit(c.Request.Context(), in)
	if err != nil {
		h.log.Error("submission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "record_id": id})
}

// formUpload returns nil when the field is absent, empty or unreadable.
func (h *handlers) formUpload(c *gin.Context, field string) *media.Upload {
	fh, err := c.FormFile(field)
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			h.log.Warn("unreadable upload", zap.String("field", field), zap.Error(err))
		}
		return nil
	}

	f, err := fh.Open()
	if err != nil {
		h.log.Warn("open upload", zap.String("field", field), zap.Error(err))
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.log.Warn("read upload", zap.String("field", field), zap.Error(err))
		return nil
	}
	if len(data) == 0 {
		h.log.Debug("empty upload skipped", zap.String("field", field), zap.String("filename", fh.Filename))
		return nil
	}
	return &media.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
}

func (h *handlers) dashboard(c *gin.Context) {
	dash, err := h.records.Dashboard(c.Request.Context())
	if err != nil {
		h.log.Error("dashboard", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Dashboard unavailable",
			"Message": "Records could not be loaded. Please try again.",
		})
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":   "Triage Dashboard",
		"Records": dash.Records,
		"Stats":   dash.Stats,
	})
}

func (h *handlers) result(c *gin.Context) {
	h.renderRecord(c, "result.html", "Triage Result")
}

func (h *handlers) abdmRecord(c *gin.Context) {
	h.renderRecord(c, "abdm_record.html", "ABDM Health Record")
}

func (h *handlers) renderRecord(c *gin.Context, page, title string) {
	rec, err := h.records.Get(c.Request.Context(), recordID(c))
	if err != nil {
		status, title, message := http.StatusNotFound, "Record not found", "No record exists with this id."
		if !errors.Is(err, store.ErrRecordNotFound) {
			h.log.Error("load record", zap.String("record_id", recordID(c)), zap.Error(err))
			status, title, message = http.StatusInternalServerError, "Record unavailable", "The record could not be loaded."
		}
		c.HTML(status, "error.html", gin.H{"Title": title, "Message": message})
		return
	}
	c.HTML(http.StatusOK, page, gin.H{"Title": title, "Record": rec})
}

func (h *handlers) recordJSON(c *gin.Context) {
	rec, err := h.records.Get(c.Request.Context(), recordID(c))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		h.log.Error("load record", zap.String("record_id", recordID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record could not be loaded"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// recordID reads the id from the path, or from ?id= for the query form.
func recordID(c *gin.Context) string {
	if id := strings.TrimSpace(c.Param("id")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("id"))
}
