package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jkvis/donateflow/internal/config"
	paymentdomain "github.com/jkvis/donateflow/internal/payment/domain"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"github.com/jkvis/donateflow/internal/reconciliation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	genID      *snowflake.Node
	paymentSvc paymentdomain.Service
	receiptSvc receiptdomain.Service
	artifacts  artifact.Store
	job        *reconciliation.Job
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	PaymentSvc paymentdomain.Service
	ReceiptSvc receiptdomain.Service
	Artifacts  artifact.Store
	Job        *reconciliation.Job
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		genID:      p.GenID,
		paymentSvc: p.PaymentSvc,
		receiptSvc: p.ReceiptSvc,
		artifacts:  p.Artifacts,
		job:        p.Job,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)

	admin := s.engine.Group("/admin")
	admin.POST("/reconciliation/runs", s.HandleRunReconciliation)
	admin.POST("/donors/:id/receipts", s.HandleGenerateDonorReceipt)

	s.engine.GET("/receipts/:number/download", s.HandleDownloadReceipt)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
