package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vitiko98/mopidy-qobuz/backend/app"
	"github.com/vitiko98/mopidy-qobuz/backend/config"
)

var (
	versionName = ""
	commitSHA   = ""
	buildTime   = ""
)

var (
	cfgFile    string
	logLevel   string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:          "qobuz-bridge",
	Short:        "Qobuz backend for music players",
	Long:         `qobuz-bridge logs into Qobuz, exposes its catalogue through an HTTP bridge and resolves track URIs into playable stream URLs.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.ini", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LogLevel (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "override ListenAddr")

	rootCmd.AddCommand(
		serveCmd(),
		resolveCmd(),
		browseCmd(),
		searchCmd(),
		lookupCmd(),
		matchCmd(),
		versionCmd(),
	)
}

func buildInfo() app.BuildInfo {
	return app.BuildInfo{
		RuntimeVer: runtime.Version(),
		BinVersion: versionName,
		CommitSHA:  commitSHA,
		BuildTime:  buildTime,
		BuildArch:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func loadApp() (*app.App, error) {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		conf.Set("LogLevel", logLevel)
	}
	if listenAddr != "" {
		conf.Set("ListenAddr", listenAddr)
	}
	return app.NewFromConfig(conf, buildInfo())
}

func runServe(cmd *cobra.Command, _ []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}
	defer shutdown(application)

	return application.Run(cmd.Context())
}

func shutdown(application *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), application.ShutdownTimeout())
	defer cancel()
	_ = application.Shutdown(ctx)
}
