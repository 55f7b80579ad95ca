package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/api"
	"github.com/Fire-Hyun/naverPost-sub000/internal/config"
	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/publish"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	draftFile  string
	title      string
	bodyFile   string
	images     []string
	placeName  string
	tags       []string
	visibility string
)

var rootCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Publishes generated posts into the blog editor as verified temp-saved drafts",
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish one draft and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, catalog, err := loadEnvironment()
		if err != nil {
			return err
		}

		draft, err := loadDraft()
		if err != nil {
			return err
		}

		attempts := publish.NewAttemptLog(cfg.AttemptLogDir)
		defer attempts.Close()
		orch := publish.NewOrchestrator(cfg, catalog, attempts)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			slog.Warn("shutdown requested, finishing current attempt")
			orch.RequestShutdown()
		}()

		result, err := orch.Publish(context.Background(), draft)
		printResult(result)
		if err != nil {
			return err
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, catalog, err := loadEnvironment()
		if err != nil {
			return err
		}

		attempts := publish.NewAttemptLog(cfg.AttemptLogDir)
		defer attempts.Close()
		svc := newPublisherService(cfg, catalog, attempts)

		srv := &http.Server{Addr: cfg.BindAddr, Handler: api.NewServer(svc)}

		go func() {
			slog.Info("publisher listening",
				"addr", cfg.BindAddr, "docs", "http://"+cfg.BindAddr+"/docs")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("publisher server failed", "error", err)
				os.Exit(1)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		svc.shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("publisher shutdown failed", "error", err)
		}
		return nil
	},
}

var checkLoginCmd = &cobra.Command{
	Use:   "check-login",
	Short: "Report whether the stored browser profile is logged in",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadEnvironment()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		sess := session.New(cfg)
		if err := sess.Open(ctx); err != nil {
			return err
		}
		defer sess.Close()

		status, err := sess.EnsureLoggedIn(ctx)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		if !status.LoggedIn {
			os.Exit(2)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(publishCmd, serveCmd, checkLoginCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	publishCmd.Flags().StringVar(&draftFile, "file", "", "Path to a draft JSON file (title/body/image_paths/place_name/tags/visibility)")
	publishCmd.Flags().StringVar(&title, "title", "", "Draft title (ignored when --file is set)")
	publishCmd.Flags().StringVar(&bodyFile, "body-file", "", "Path to a text file holding the draft body")
	publishCmd.Flags().StringArrayVar(&images, "image", nil, "Image path to attach (repeatable)")
	publishCmd.Flags().StringVar(&placeName, "place", "", "Place name to attach")
	publishCmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag to apply (repeatable)")
	publishCmd.Flags().StringVar(&visibility, "visibility", "", "Post visibility: public, protected or private")
}

func loadEnvironment() (*config.Config, *editor.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, nil, fmt.Errorf("logger setup: %w", err)
	}
	catalog, err := editor.LoadCatalog(cfg.SelectorFile)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("publisher config loaded",
		"cdp", cfg.CDPURL(),
		"profile_dir", cfg.ProfileDir,
		"headless", cfg.Headless,
		"max_retries", cfg.MaxRetries,
		"watchdog_sec", cfg.WatchdogSec,
		"selector_file", cfg.SelectorFile,
		"log_level", cfg.LogLevel,
	)
	return cfg, catalog, nil
}

func loadDraft() (post.Draft, error) {
	if draftFile != "" {
		data, err := os.ReadFile(draftFile)
		if err != nil {
			return post.Draft{}, fmt.Errorf("read draft file: %w", err)
		}
		var draft post.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			return post.Draft{}, fmt.Errorf("parse draft file: %w", err)
		}
		return draft, nil
	}

	draft := post.Draft{
		Title:      title,
		ImagePaths: images,
		PlaceName:  placeName,
		Tags:       tags,
		Visibility: post.Visibility(visibility),
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return post.Draft{}, fmt.Errorf("read body file: %w", err)
		}
		draft.Body = string(data)
	}
	return draft, nil
}

func printResult(result *publish.Result) {
	if result == nil {
		return
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Error("marshal result failed", "error", err)
		return
	}
	fmt.Println(string(out))
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
