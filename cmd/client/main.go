package main

import (
	"context"
	"e2e_groupchat/internal/chat"
	"e2e_groupchat/internal/config"
	"e2e_groupchat/internal/directory"
	"e2e_groupchat/internal/model"
	"e2e_groupchat/internal/provider/keyring"
	"e2e_groupchat/internal/service/app"
	"e2e_groupchat/internal/session"
	"e2e_groupchat/internal/utils/log"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configFile string
		nickname   string
	)

	cmd := &cobra.Command{
		Use:   "client <user id>",
		Short: "End-to-end encrypted group chat terminal client",
		Long: `Signs in as <user id>, publishes its keys on first run and opens the
terminal chat. Messages are encrypted for the channel's group before they
leave the device.`,
		Example:      `  client --config client.toml alice`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), configFile, model.Identity(args[0]), nickname)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "f", "client.toml", "path to the client configuration file (TOML format)")
	cmd.Flags().StringVar(&nickname, "nickname", "", "nickname used when the messaging user is first created")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runClient(ctx context.Context, configFile string, id model.Identity, nickname string) error {
	cfg, err := config.LoadClientFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config file '%v': %v", configFile, err)
	}
	if err := log.Setup(cfg.Logging.Level, cfg.Logging.Development, cfg.Logging.File); err != nil {
		return err
	}
	defer log.Sync()

	keys, err := keyring.OpenKeystore(cfg.Keystore)
	if err != nil {
		return err
	}
	defer keys.Close()

	dir := directory.New(cfg.ServerURL, nil)
	sess := session.New(keyring.New(dir, keys), dir, session.Options{
		DecryptConcurrency: cfg.DecryptConcurrency,
		BootstrapTimeout:   cfg.BootstrapTimeout,
	})
	ctrl := chat.New(dir.Channels(id), sess)

	return app.NewApp(sess, ctrl, dir, app.Options{PageSize: cfg.PageSize}).Run(ctx, id, nickname)
}
