package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitiko98/mopidy-qobuz/backend/app"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Log in and serve the HTTP bridge (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

// withStartedApp runs fn against an app whose backends have logged in.
func withStartedApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	return withApp(cmd, true, fn)
}

// withApp runs fn and prints its result as JSON. Backends are only started
// when start is set; offline commands never touch the network.
func withApp(cmd *cobra.Command, start bool, fn func(ctx context.Context, a *app.App) (any, error)) error {
	application, err := loadApp()
	if err != nil {
		return err
	}
	defer shutdown(application)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if start {
		if err := application.Start(ctx); err != nil {
			return err
		}
	}
	result, err := fn(ctx, application)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <uri>",
		Short: "Print the playable stream URL of a track URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStartedApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				url, ok := a.Manager.TranslateURI(ctx, args[0])
				if !ok {
					return nil, fmt.Errorf("%s is not playable", args[0])
				}
				return map[string]string{"uri": args[0], "url": url}, nil
			})
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [uri]",
		Short: "List a directory; without an argument list the root directories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := ""
			if len(args) == 1 {
				uri = args[0]
			}
			return withStartedApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Manager.Browse(ctx, uri)
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var (
		field string
		exact bool
	)
	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search albums, tracks and artists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := platform.Query{field: {strings.Join(args, " ")}}
			return withStartedApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Manager.Search(ctx, query, exact)
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "any", "query field (any, artist, album, track_name)")
	cmd.Flags().BoolVar(&exact, "exact", false, "request exact matches")
	return cmd
}

func lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <uri...>",
		Short: "Expand album, artist, playlist and track URIs into tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStartedApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Manager.Lookup(ctx, args...)
			})
		},
	}
}

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <url>",
		Short: "Convert a web link into a URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) (any, error) {
				uri, backend, ok := a.Manager.MatchURL(args[0])
				if !ok {
					return nil, fmt.Errorf("no backend recognises %s", args[0])
				}
				return map[string]string{"uri": uri, "backend": backend}, nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), buildInfo())
		},
	}
}
