// Package api exposes the UStVA calculation and the e-invoice pipeline over
// HTTP for one company.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"taxkit/internal/einvoice"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Company   models.CompanyProfile
	Documents services.DocumentStore
	Reports   services.ReportRepository
	EInvoices *einvoice.Service
	// Now defaults to time.Now
	Now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	engine *gin.Engine
	log    zerolog.Logger
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		log:    logger.WithComponent("api"),
	}
	s.engine.Use(gin.Recovery(), requestID(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")

	ustva := v1.Group("/ustva")
	ustva.POST("/preview", s.previewUStVA)
	ustva.POST("/reports", s.submitUStVA)
	ustva.GET("/reports", s.listReports)
	ustva.GET("/reports/:id", s.getReport)
	ustva.PATCH("/reports/:id/status", s.updateReportStatus)
	ustva.GET("/reports/:id/elster", s.exportElster)

	einv := v1.Group("/einvoices")
	einv.POST("", s.generateEInvoice)
	einv.GET("", s.listEInvoices)
	einv.POST("/validate", s.validateEInvoice)
	einv.POST("/compliance", s.checkCompliance)
	einv.GET("/:id/download", s.downloadEInvoice)
	einv.POST("/:id/revalidate", s.revalidateEInvoice)
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("company_id", s.deps.Company.ID).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
