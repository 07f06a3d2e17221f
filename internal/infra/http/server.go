package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"recordproof/internal/config"
	"recordproof/internal/domain"
	"recordproof/internal/infra/cachemem"
	"recordproof/internal/infra/cacheredis"
	"recordproof/internal/infra/codec"
	"recordproof/internal/infra/crypto"
	"recordproof/internal/infra/db"
	"recordproof/internal/infra/policyopa"
	"recordproof/internal/infra/ratelimit"
	"recordproof/internal/infra/recordmem"
	"recordproof/internal/infra/schema"
	"recordproof/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeySource is the part of the key manager the API needs.
type KeySource interface {
	crypto.KeySource
	PublicKeyPEM() ([]byte, error)
}

type Server struct {
	cfg    config.Config
	store  *db.Store
	r      *gin.Engine
	logger *zap.Logger

	records *usecase.RecordService
	keys    KeySource
	schema  *schema.Registry
	policy  domain.PolicyEngine

	rateLimiter         domain.RateLimiter
	rateQuota           domain.Quota
	rateLimitFailClosed bool

	closers []io.Closer
	initErr error
}

// NewServer wires the production dependencies from cfg. The key source
// must already be initialized.
func NewServer(cfg config.Config, store *db.Store, keys KeySource, reg *schema.Registry, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, store: store, keys: keys, schema: reg, logger: orNop(logger)}
	s.r = s.newEngine()
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Records     *usecase.RecordService
	Keys        KeySource
	Schema      *schema.Registry
	Policy      domain.PolicyEngine
	RateLimiter domain.RateLimiter
	Logger      *zap.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  orNop(deps.Logger),
		records: deps.Records,
		keys:    deps.Keys,
		schema:  deps.Schema,
		policy:  deps.Policy,
	}
	s.r = s.newEngine()
	s.initRateLimit(deps.RateLimiter, nil)
	s.routes()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	return r
}

func (s *Server) initDeps() {
	var repo usecase.RecordRepository
	if s.store.Enabled() {
		repo = db.NewRecordRepository(s.store.DB)
	} else {
		repo = recordmem.New()
	}

	var redisClient redis.UniversalClient
	if s.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		redisClient = client
		s.closers = append(s.closers, client)
	}

	var cache usecase.VerificationCache = cachemem.New()
	if redisClient != nil {
		cache = cacheredis.NewWithClient(redisClient)
	}

	auth := usecase.NewAuthenticity(crypto.HashEmail, crypto.NewSigner(s.keys))
	s.records = usecase.NewRecordService(repo, auth, codec.NewExporter(s.schema, nil), cache, usecase.RecordServiceConfig{
		DefaultPageSize:  s.cfg.PageSizeDefault,
		MaxPageSize:      s.cfg.PageSizeMax,
		ExportMaxRecords: s.cfg.ExportMaxRecords,
		VerifyCacheTTL:   s.cfg.VerifyCacheTTL(),
	})

	engine, err := policyopa.NewEngine(context.Background(), s.cfg.PolicyPath)
	if err != nil {
		s.initErr = err
	} else {
		s.policy = engine
		s.logger.Info("authorization policy loaded", zap.String("source", engine.Source()))
	}

	s.initRateLimit(nil, redisClient)
}

func (s *Server) initRateLimit(override domain.RateLimiter, redisClient redis.UniversalClient) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if redisClient != nil {
			s.rateLimiter = ratelimit.NewRedisLimiter(redisClient, nil)
		} else {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxCallers: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateQuota = domain.Quota{Limit: s.cfg.RateLimitRequests, Window: time.Minute}
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateQuota.Window = s.cfg.RateLimitWindow()
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.GET("/keys/public", s.limit(routeKeysRead), s.authorize(domain.ActionKeysRead), s.handlePublicKey)

		v1.POST("/records", s.limit(routeRecordsWrite), s.authorize(domain.ActionRecordsWrite), s.handleCreateRecord)
		v1.GET("/records", s.limit(routeRecordsRead), s.authorize(domain.ActionRecordsRead), s.handleListRecords)
		v1.GET("/records/:id", s.limit(routeRecordsRead), s.authorize(domain.ActionRecordsRead), s.handleGetRecord)
		v1.PATCH("/records/:id", s.limit(routeRecordsWrite), s.authorize(domain.ActionRecordsWrite), s.handleUpdateRecord)
		v1.DELETE("/records/:id", s.limit(routeRecordsWrite), s.authorize(domain.ActionRecordsWrite), s.handleDeleteRecord)
		v1.GET("/records/:id/verify", s.limit(routeRecordsRead), s.authorize(domain.ActionRecordsRead), s.handleVerifyRecord)

		v1.GET("/export", s.limit(routeExport), s.authorize(domain.ActionRecordsExport), s.handleExport)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) Close() error {
	var errs []error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
