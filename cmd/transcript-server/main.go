package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pyama86/ticketbot/transcriptserver"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		slog.Error("transcript server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	var listen, dir string
	var site transcriptserver.Site

	flagSet := pflag.NewFlagSet("transcript-server", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", ":3001", "address to listen on")
	flagSet.StringVar(&dir, "dir", "./public/transcripts", "directory transcripts are stored in")
	flagSet.StringVar(&site.Title, "title", "Ticket Transcript", "og:title of transcript pages")
	flagSet.StringVar(&site.Description, "description", "Support ticket conversation transcript.", "og:description of transcript pages")
	flagSet.StringVar(&site.Image, "image", "", "og:image url of transcript pages")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	s, err := transcriptserver.NewServer(dir, site)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", slog.Any("err", err))
		}
	}()

	slog.Info("transcript upload server listening", slog.String("bind", listen), slog.String("dir", dir))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe failed: %w", err)
	}
	return nil
}
