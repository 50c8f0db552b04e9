package server

import (
	"context"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/sendbird"
	"e2e_groupchat/internal/token"
	"e2e_groupchat/internal/utils/log"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type (
	// Messaging is the vendor messaging backend as the server uses it.
	Messaging interface {
		GetUser(ctx context.Context, id model.Identity) (*sendbird.User, error)
		CreateUser(ctx context.Context, id model.Identity, nickname string) (*sendbird.User, error)
		CreateGroupChannel(ctx context.Context, creator model.Identity, name string, members []model.Identity, data string) (*model.Channel, error)
		GetGroupChannel(ctx context.Context, channelURL string) (*model.Channel, error)
		ListMyGroupChannels(ctx context.Context, user model.Identity, limit int) ([]*model.Channel, error)
		ListMessages(ctx context.Context, channelURL string, limit int) ([]*model.Message, error)
		SendMessage(ctx context.Context, channelURL string, sender model.Identity, text, data string) (*model.Message, error)
	}

	CardStore interface {
		Upsert(ctx context.Context, card *model.Card) error
		Find(ctx context.Context, ids []model.Identity) ([]*model.Card, error)
	}

	GroupStore interface {
		Create(ctx context.Context, rec *model.GroupRecord) error
		Get(ctx context.Context, owner model.Identity, groupID string) (*model.GroupRecord, error)
	}

	// Cache is a key/value cache with expiry; a miss is any error.
	Cache interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key string, value any, ttl time.Duration) error
		Del(ctx context.Context, key string) error
	}

	Options struct {
		Addr         string
		CardCacheTTL time.Duration
		// MaxLookup bounds the identities of one card lookup.
		MaxLookup int
	}

	HttpServer struct {
		opts      Options
		issuer    *token.Issuer
		messaging Messaging
		cards     CardStore
		groups    GroupStore
		cache     Cache
		metrics   *metrics
	}
)

// NewHttpServer wires the server. cache may be nil.
func NewHttpServer(opts Options, issuer *token.Issuer, messaging Messaging, cards CardStore, groups GroupStore, cache Cache) *HttpServer {
	if opts.CardCacheTTL <= 0 {
		opts.CardCacheTTL = 5 * time.Minute
	}
	if opts.MaxLookup <= 0 {
		opts.MaxLookup = 100
	}
	return &HttpServer{
		opts:      opts,
		issuer:    issuer,
		messaging: messaging,
		cards:     cards,
		groups:    groups,
		cache:     cache,
		metrics:   newMetrics(),
	}
}

func (s *HttpServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)

	r.HandleFunc("/virgil/jwt/{userId}", s.GetIdentityToken()).Methods(http.MethodGet)
	r.HandleFunc("/sendbird/accessToken/{userId}", s.GetAccessToken()).Methods(http.MethodGet)
	r.HandleFunc("/users", s.CreateUser()).Methods(http.MethodPost)

	r.HandleFunc("/cards", s.FindCards()).Methods(http.MethodGet)
	r.HandleFunc("/cards/{userId}", s.authenticated(s.PublishCard())).Methods(http.MethodPut)
	r.HandleFunc("/groups", s.authenticated(s.CreateGroup())).Methods(http.MethodPost)
	r.HandleFunc("/groups/{ownerId}/{groupId}", s.GetGroup()).Methods(http.MethodGet)

	r.HandleFunc("/channels", s.authenticated(s.CreateChannel())).Methods(http.MethodPost)
	r.HandleFunc("/channels", s.authenticated(s.ListChannels())).Methods(http.MethodGet)
	r.HandleFunc("/channels/{channelUrl}", s.authenticated(s.GetChannel())).Methods(http.MethodGet)
	r.HandleFunc("/channels/{channelUrl}/messages", s.authenticated(s.ListMessages())).Methods(http.MethodGet)
	r.HandleFunc("/channels/{channelUrl}/messages", s.authenticated(s.SendMessage())).Methods(http.MethodPost)

	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.observe(r.Method, route, rec.status, time.Since(start))
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
