package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router groups the handlers served under /api.
type Router struct {
	Health     gin.HandlerFunc
	Analysis   *AnalysisHandler
	Completion *CompletionHandler
	Forms      *FormHandler
	Documents  *DocumentHandler
}

// Register mounts every configured handler on r. Nil handlers are skipped.
func (rt Router) Register(r gin.IRouter) {
	if rt.Health != nil {
		r.GET("/health", rt.Health)
	}

	api := r.Group("/api")
	{
		if rt.Completion != nil {
			api.POST("/uploads/complete", rt.Completion.Complete)
		}
		if rt.Analysis != nil {
			api.POST("/analysis", rt.Analysis.Analyze)
		}

		if rt.Forms != nil {
			api.GET("/forms/latest", rt.Forms.GetLatestForm)
			api.GET("/forms/:id", rt.Forms.GetForm)
			api.PUT("/forms/:id/questions", rt.Forms.ReplaceQuestions)
			api.GET("/forms/:id/review", rt.Forms.GetFormReview)
			api.POST("/forms/:id/review", rt.Forms.SaveReview)
			api.GET("/patients/:patientId/review", rt.Forms.GetPatientReview)
		}

		if rt.Documents != nil {
			api.POST("/documents/upload", rt.Documents.Upload)
			api.GET("/documents/:id", rt.Documents.GetDocument)
			api.GET("/documents/:id/content", rt.Documents.GetContent)
			api.PUT("/documents/:id/analysis", rt.Documents.RecordAnalysis)
		}
	}
}

// Cors allows browser clients on other origins to call the API.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-request-id")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
