package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/config"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduler and the config watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(true)
			if err != nil {
				return err
			}
			defer rt.close()

			// Wait for shutdown signal
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watchPath := rt.configPath
			if _, err := os.Stat(watchPath); err != nil {
				rt.logger.Warn("config file not found, running with defaults and without reload", "path", watchPath)
				watchPath = ""
			}

			if err := rt.app.Run(ctx, watchPath, config.Override(overrides)); err != nil {
				return err
			}
			rt.logger.Info("shutting down application")
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored attachment ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			for _, id := range rt.app.Manager().ListIDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	var id, title, contentType string

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file as a new attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			path := args[0]
			if id == "" {
				id = filepath.Base(path)
			}

			src, err := attachment.NewResource(id, title, contentType, time.Now(),
				attachment.NewFileSource(afero.NewOsFs(), path))
			if err != nil {
				return err
			}

			stored, err := rt.app.Manager().Create(src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s, %s)\n", stored.ID(), stored.Title(), stored.ContentType())
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "attachment id (default is the file name)")
	cmd.Flags().StringVar(&title, "title", "", "attachment title (default is the file name)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (default is inferred from the file name)")
	return cmd
}

func getCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write the content of an attachment to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			a, found, err := rt.app.Manager().Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("attachment %s not found", args[0])
			}

			rc, err := a.Open()
			if err != nil {
				return err
			}
			defer rc.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			_, err = io.Copy(w, rc)
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default is stdout)")
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			change, err := rt.app.Manager().Remove(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], change)
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Compare the index with the attachment directories on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.app.Audit()
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Clean() {
				return errors.New("storage root is inconsistent with its index")
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one pass over the configured mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(false)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.app.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
