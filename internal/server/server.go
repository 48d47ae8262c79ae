package server

import (
	"context"
	"net/http"
	"time"

	"github.com/buildquote/matchline/internal/audit"
	auditdomain "github.com/buildquote/matchline/internal/audit/domain"
	"github.com/buildquote/matchline/internal/catalog"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	"github.com/buildquote/matchline/internal/classifier"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/buildquote/matchline/internal/clock"
	"github.com/buildquote/matchline/internal/cloudmetrics"
	"github.com/buildquote/matchline/internal/config"
	"github.com/buildquote/matchline/internal/item"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/buildquote/matchline/internal/keylock"
	"github.com/buildquote/matchline/internal/mapping"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"github.com/buildquote/matchline/internal/matching"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"github.com/buildquote/matchline/internal/observability"
	obsmiddleware "github.com/buildquote/matchline/internal/observability/logger"
	obsmetrics "github.com/buildquote/matchline/internal/observability/metrics"
	obstracing "github.com/buildquote/matchline/internal/observability/tracing"
	"github.com/buildquote/matchline/internal/report"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	audit.Module,
	item.Module,
	catalog.Module,
	classifier.Module,
	keylock.Module,
	mapping.Module,
	matching.Module,
	report.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
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

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	clock         clock.Clock
	genID         *snowflake.Node
	matchingSvc   matchingdomain.Service
	mappingSvc    mappingdomain.Service
	classifierSvc classifierdomain.Service
	auditSvc      auditdomain.Service
	reportSvc     *report.Service
	itemsRepo     itemdomain.Repository
	catalogRepo   catalogdomain.Repository
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Clock         clock.Clock
	GenID         *snowflake.Node
	MatchingSvc   matchingdomain.Service
	MappingSvc    mappingdomain.Service
	ClassifierSvc classifierdomain.Service
	AuditSvc      auditdomain.Service
	ReportSvc     *report.Service
	ItemsRepo     itemdomain.Repository
	CatalogRepo   catalogdomain.Repository
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		clock:         p.Clock,
		genID:         p.GenID,
		matchingSvc:   p.MatchingSvc,
		mappingSvc:    p.MappingSvc,
		classifierSvc: p.ClassifierSvc,
		auditSvc:      p.AuditSvc,
		reportSvc:     p.ReportSvc,
		itemsRepo:     p.ItemsRepo,
		catalogRepo:   p.CatalogRepo,
		obsMetrics:    p.ObsMetrics,
	}
	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", OrgContext())

	v1.POST("/items", s.CreateItem)
	v1.GET("/items/:id", s.GetItem)
	v1.POST("/price-entries", s.CreatePriceEntry)
	v1.POST("/classification-rules", s.CreateClassificationRule)

	v1.POST("/match-runs", s.CreateMatchRun)
	v1.GET("/match-runs/:run_id/results", s.ListRunResults)
	v1.GET("/match-results/:id", s.GetMatchResult)
	v1.POST("/match-results/:id/approve", s.ApproveMatchResult)
	v1.POST("/match-results/:id/reject", s.RejectMatchResult)

	v1.GET("/mappings", s.ListActiveMappings)
	v1.GET("/reports/asof", s.GetAsOfReport)
	v1.GET("/audit-logs", s.ListAuditLogs)
}
