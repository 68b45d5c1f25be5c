package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/classifier"
	"github.com/example/plantdoc/internal/config"
	"github.com/example/plantdoc/internal/controller"
	"github.com/example/plantdoc/internal/handlers"
	"github.com/example/plantdoc/internal/logging"
	"github.com/example/plantdoc/internal/metrics"
	"github.com/example/plantdoc/internal/session"
	"github.com/example/plantdoc/internal/terminal"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to a YAML config file",
		EnvVars: []string{"PLANTDOC_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "classifier-endpoint",
		Usage: "URL of the classification service predict endpoint",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "plantdoc"
	app.Usage = "plant disease diagnosis frontend"
	app.Commands = []*cli.Command{
		serveCmd,
		diagnoseCmd,
	}

	app.RunAndExitOnError()
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "serve the upload and results pages",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address",
		},
	}, commonFlags...),
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if addr := cctx.String("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logger, err := logging.NewLogger(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		client := newClassifierClient(cfg, logger)
		m := metrics.New()
		store := session.NewStore(cfg.Session.Capacity, cfg.Session.TTL, func(id string) *controller.Controller {
			return controller.New(client, logger, controller.WithRecorder(m), controller.WithSessionID(id))
		})

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery(), handlers.RequestLogger(logger.Named("http")))
		r.MaxMultipartMemory = cfg.Server.MaxUploadBytes

		if err := handlers.RegisterRoutes(r, handlers.Options{
			Sessions:      store,
			Metrics:       m,
			Health:        client,
			Logger:        logger,
			CookieName:    cfg.Session.CookieName,
			MaxUploadSize: cfg.Server.MaxUploadBytes,
		}); err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info("plantdoc listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("classifier", cfg.Classifier.Endpoint),
		)
		return serveHTTPServer(server, cfg.Server.ShutdownTimeout, logger)
	},
}

var diagnoseCmd = &cli.Command{
	Name:      "diagnose",
	Usage:     "analyze one image and print the diagnosis",
	ArgsUsage: "<image>",
	Flags:     commonFlags,
	Action: func(cctx *cli.Context) error {
		path := cctx.Args().First()
		if path == "" {
			return cli.Exit("an image path is required", 2)
		}

		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		logger, err := logging.NewLogger(cfg.Log.Level)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		ctrl := controller.New(newClassifierClient(cfg, logger), logger)
		ctrl.SelectImage(&controller.ImageFile{
			Name:        filepath.Base(path),
			ContentType: contentTypeFor(path),
			Data:        data,
		})

		submitErr := ctrl.Submit(cctx.Context)
		fmt.Fprintln(cctx.App.Writer, terminal.Render(ctrl.State()))
		if submitErr != nil {
			return cli.Exit("", 1)
		}
		return nil
	},
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	if endpoint := cctx.String("classifier-endpoint"); endpoint != "" {
		cfg.Classifier.Endpoint = endpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newClassifierClient(cfg *config.Config, logger *zap.Logger) *classifier.HTTPClient {
	return classifier.NewHTTPClient(cfg.Classifier.Endpoint, logger,
		classifier.WithTimeout(cfg.Classifier.Timeout),
		classifier.WithHealthEndpoint(cfg.Classifier.HealthEndpoint),
	)
}

// contentTypeFor mirrors what a browser declares for a picked file. Unknown
// extensions are left empty so the preview falls back to sniffing.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
