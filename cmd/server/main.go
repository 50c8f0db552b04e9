package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"e2e_groupchat/internal/config"
	"e2e_groupchat/internal/repository/card"
	"e2e_groupchat/internal/repository/group"
	"e2e_groupchat/internal/repository/memory"
	"e2e_groupchat/internal/sendbird"
	redisSvc "e2e_groupchat/internal/service/redis"
	"e2e_groupchat/internal/service/server"
	"e2e_groupchat/internal/token"
	"e2e_groupchat/internal/utils/log"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Token issuer, key directory and channel proxy for the group chat",
		Example: `  # Start the server
  server --config server.toml

  # Generate a token signing key for the config file
  server genkey`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "f", "server.toml", "path to the server configuration file (TOML format)")

	cmd.AddCommand(&cobra.Command{
		Use:   "genkey",
		Short: "Print a fresh base64 identity token signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(seed))
			return nil
		},
	})
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServer(ctx context.Context, configFile string) error {
	cfg, err := config.LoadServerFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config file '%v': %v", configFile, err)
	}
	if err := log.Setup(cfg.Logging.Level, cfg.Logging.Development, cfg.Logging.File); err != nil {
		return err
	}
	defer log.Sync()

	issuer, err := token.NewIssuer(cfg.Token.AppID, cfg.Token.KeyID, cfg.Token.SigningKey, cfg.Token.TTL)
	if err != nil {
		return err
	}

	var messaging *sendbird.Client
	if cfg.Sendbird.BaseURL != "" {
		messaging = sendbird.NewWithBaseURL(cfg.Sendbird.BaseURL, cfg.Sendbird.APIToken, nil)
	} else {
		messaging = sendbird.New(cfg.Sendbird.AppID, cfg.Sendbird.APIToken, nil)
	}

	var (
		cards  server.CardStore  = memory.NewCardStore()
		groups server.GroupStore = memory.NewGroupStore()
	)
	if cfg.Mongo.URI != "" {
		mongoDBClient, err := initMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer mongoDBClient.Disconnect(context.Background())

		db := mongoDBClient.Database(cfg.Mongo.Database)
		groupRepo := group.NewGroupRepo(db)
		if err := groupRepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("create group indexes: %w", err)
		}
		cards, groups = card.NewCardRepo(db), groupRepo
	} else {
		log.Warn("no Mongo.URI configured, cards and groups are kept in memory")
	}

	var cache server.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rs := redisSvc.NewRedis(rdb, cfg.Redis.Prefix)
		if err := rs.Ping(ctx); err != nil {
			return err
		}
		cache = rs
	}

	srv := server.NewHttpServer(server.Options{
		Addr:         cfg.Listen,
		CardCacheTTL: cfg.Redis.CardTTL,
		MaxLookup:    cfg.MaxLookup,
	}, issuer, messaging, cards, groups, cache)

	log.Info("starting server",
		zap.String("addr", cfg.Listen),
		zap.Bool("mongo", cfg.Mongo.URI != ""),
		zap.Bool("redis", cache != nil))
	return srv.Run(ctx)
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
