// Package httpapi serves the health-worker web pages, the submission endpoint
// and a small JSON API.
package httpapi

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/models"
	"github.com/Skufu/GoTriage/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Records interface {
	Submit(ctx context.Context, in service.SubmitInput) (string, error)
	Get(ctx context.Context, id string) (models.PatientRecord, error)
	Dashboard(ctx context.Context) (service.Dashboard, error)
}

type Options struct {
	StaticDir            string
	MaxUploadBytes       int64
	AnalyzeRatePerMinute int
	// Checks are reported by /readyz under their map key.
	Checks map[string]HealthChecker
}

func NewRouter(records Records, opts Options, log *zap.Logger) *gin.Engine {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}

	router := gin.New()
	router.MaxMultipartMemory = opts.MaxUploadBytes
	router.Use(
		requestLogger(log),
		gin.Recovery(),
		limitBodySize(opts.MaxUploadBytes+1<<20),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)
	router.SetHTMLTemplate(parseTemplates())

	if opts.StaticDir != "" {
		router.Static("/static", opts.StaticDir)
	}

	h := &handlers{records: records, log: log, maxUpload: opts.MaxUploadBytes}

	router.GET("/", h.home)
	router.GET("/record", h.recordForm)
	router.POST("/analyze", rateLimitByIP(opts.AnalyzeRatePerMinute), h.analyze)
	router.GET("/dashboard", h.dashboard)
	router.GET("/result", h.result)
	router.GET("/result/:id", h.result)
	router.GET("/abdm-record", h.abdmRecord)
	router.GET("/abdm-record/:id", h.abdmRecord)
	router.GET("/api/records/:id", h.recordJSON)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readiness(opts.Checks))

	return router
}

func readiness(checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if _, ok := checks["db"]; !ok {
			body["db"] = "disabled"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		code := http.StatusOK
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				body[name] = fmt.Sprintf("unhealthy: %v", err)
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		c.JSON(code, body)
	}
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"triageClass": func(level models.TriageLevel) string {
			return strings.ToLower(string(level))
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("02 Jan 2006 15:04 UTC")
		},
		"orDash": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "-"
			}
			return s
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
