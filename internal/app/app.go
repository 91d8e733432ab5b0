package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/shhac/nrpc/gen"
	apperrors "github.com/shhac/nrpc/internal/errors"
	"github.com/shhac/nrpc/internal/invoke"
	"github.com/shhac/nrpc/internal/logging"
	"github.com/shhac/nrpc/internal/source"
	"github.com/shhac/nrpc/internal/storage"
	"github.com/shhac/nrpc/internal/watch"
	"github.com/shhac/nrpc/middleware"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/stream"
	"github.com/shhac/nrpc/transport/grpctransport"
	"github.com/shhac/nrpc/transport/wstransport"
)

// App wires configuration, logging, schema sources and transports together
// for the command line.
type App struct {
	config *Config
	logger *slog.Logger
	closer io.Closer
}

// New creates an App. Logs go to stderr; with debug or a log file they are
// also written as JSON to a rotating file.
func New(cfg *Config, stderr io.Writer) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := logging.NewCLILogger(stderr, cfg.Debug)

	var (
		fileLogger *slog.Logger
		closer     io.Closer
		err        error
	)
	switch {
	case cfg.LogFile != "":
		fileLogger, closer, err = logging.NewFileLogger(cfg.LogFile, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	case cfg.Debug:
		fileLogger, closer, err = logging.InitLogger("nrpc", true)
		if err != nil {
			logger.Warn("file logging disabled", slog.Any("error", err))
		}
	}
	if fileLogger != nil {
		logger = logging.Tee(logger, fileLogger)
	}

	logger.Debug("initializing nrpc",
		slog.Bool("debug", cfg.Debug),
		slog.String("out_dir", cfg.OutDir),
	)

	return &App{config: cfg, logger: logger, closer: closer}, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *Config { return a.config }

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Close flushes and closes the log file, if any.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Result reports what a generation run wrote.
type Result struct {
	Written   []string
	Unchanged int
}

// Generate transpiles the configured .proto files into OutDir.
func (a *App) Generate(ctx context.Context) (*Result, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	if len(a.config.Files) == 0 {
		return nil, gen.ErrNoInputFiles
	}
	schema, err := source.FromFiles(a.config.Files, a.config.Includes)
	if err != nil {
		return nil, err
	}
	return a.generate(ctx, schema)
}

// GenerateFromServer generates bindings for the services a server exposes
// through reflection.
func (a *App) GenerateFromServer(ctx context.Context, target source.Connection) (*Result, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	conn, err := source.Dial(target, a.logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	schema, err := source.FromReflection(ctx, conn, a.logger)
	if err != nil {
		return nil, err
	}
	return a.generate(ctx, schema)
}

func (a *App) generate(ctx context.Context, schema *source.Schema) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := a.transpiler(schema)
	if err != nil {
		return nil, err
	}

	sink := storage.NewFileSink(a.config.OutDir, a.logger)
	if err := t.Transpile(sink); err != nil {
		return nil, err
	}

	res := &Result{Written: sink.Written(), Unchanged: sink.Unchanged()}
	a.logger.Info("generated bindings",
		slog.String("source", schema.Origin),
		slog.Int("written", len(res.Written)),
		slog.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// transpiler builds a gen.Transpiler for schema from the configuration.
func (a *App) transpiler(schema *source.Schema) (*gen.Transpiler, error) {
	c := a.config
	t := gen.NewTranspilerFromSet(schema.Set, schema.Generate...).WithLogger(a.logger)
	if c.Server {
		t.GenerateServer()
	}
	if c.Client {
		t.GenerateClient()
	}
	if c.Messages {
		t.WithMessages()
	}
	if c.ImportPrefix != "" {
		t.WithImportPrefix(c.ImportPrefix)
	}
	for _, path := range c.Templates {
		g, err := loadTemplate(path)
		if err != nil {
			return nil, err
		}
		t.WithServiceGenerator(g)
	}
	return t, nil
}

// loadTemplate reads a template file. Paths that do not exist as given are
// looked up in the user's template directory.
func loadTemplate(path string) (*gen.TemplateGenerator, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !filepath.IsAbs(path) {
		if dir, derr := storage.DefaultStoragePath(); derr == nil {
			data, err = os.ReadFile(filepath.Join(dir, "templates", path))
		}
	}
	if err != nil {
		return nil, apperrors.ValidationError{Field: "templates", Message: err.Error()}
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return gen.NewTemplateGenerator(name, string(data))
}

// Watch regenerates whenever a .proto file below the include directories
// changes, until ctx is done. ready, if not nil, is closed once watching.
func (a *App) Watch(ctx context.Context, ready chan<- struct{}) error {
	dirs := a.watchDirs()
	a.logger.Info("watching for changes", slog.Any("dirs", dirs))

	w := watch.New(dirs, a.config.Watch.Debounce.Duration, a.logger)
	return w.Run(ctx, func(ctx context.Context) error {
		_, err := a.Generate(ctx)
		return err
	}, ready)
}

func (a *App) watchDirs() []string {
	if len(a.config.Includes) > 0 {
		return a.config.Includes
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range a.config.Files {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Describe lists the services of the configured files, or of the server at
// target when it is not nil.
func (a *App) Describe(ctx context.Context, target *source.Connection) ([]source.Service, error) {
	if target == nil {
		if len(a.config.Files) == 0 {
			return nil, gen.ErrNoInputFiles
		}
		schema, err := source.FromFiles(a.config.Files, a.config.Includes)
		if err != nil {
			return nil, err
		}
		return schema.Services(), nil
	}

	conn, err := source.Dial(*target, a.logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	schema, err := source.FromReflection(ctx, conn, a.logger)
	if err != nil {
		return nil, err
	}
	return schema.Services(), nil
}

// CallRequest describes one dynamic call.
type CallRequest struct {
	Target source.Connection
	// Method is "package.Service/method", optionally with a leading slash.
	Method   string
	Requests []json.RawMessage
	// Headers are "key: value" pairs sent with the call.
	Headers []string

	Zstd bool
	// ProtoWire sends frames with the standard proto content type so servers
	// that only speak plain gRPC accept them.
	ProtoWire bool
}

// Call invokes a method and hands each JSON response to emit. The schema
// comes from the configured files, or from server reflection when there are
// none. Targets starting with ws:// or wss:// are called over WebSocket.
func (a *App) Call(ctx context.Context, req CallRequest, emit func(json.RawMessage) error) error {
	headers, err := parseHeaders(req.Headers)
	if err != nil {
		return err
	}

	var (
		handler rpc.ClientHandler
		schema  *source.Schema
	)
	if isWebSocket(req.Target.Address) {
		if len(a.config.Files) == 0 {
			return apperrors.ValidationError{Field: "proto", Message: "websocket targets need .proto files"}
		}
		h := wstransport.NewClientHandler(req.Target.Address, a.logger)
		if len(headers) > 0 {
			h.WithHeader(httpHeader(headers))
		}
		handler = h
	} else {
		conn, err := source.Dial(req.Target, a.logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		handler = grpctransport.NewClientHandler(conn, a.logger, a.clientOptions(req)...)

		if len(a.config.Files) == 0 {
			if schema, err = source.FromReflection(ctx, conn, a.logger); err != nil {
				return err
			}
		}
	}
	if schema == nil {
		if schema, err = source.FromFiles(a.config.Files, a.config.Includes); err != nil {
			return err
		}
	}

	md, err := schema.FindFullMethod(req.Method)
	if err != nil {
		return err
	}

	inv := invoke.NewInvoker(rpc.InterceptClient(handler, middleware.Logging(a.logger)), a.logger)
	out, err := inv.Invoke(ctx, md, req.Requests, headers)
	if err != nil {
		return err
	}
	for resp, err := range stream.All(out) {
		if err != nil {
			return err
		}
		if err := emit(resp); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) clientOptions(req CallRequest) []grpctransport.ClientOption {
	var opts []grpctransport.ClientOption
	if req.Zstd {
		opts = append(opts, grpctransport.WithCompression(grpctransport.Zstd))
	}
	if req.ProtoWire {
		opts = append(opts, grpctransport.WithProtoWire())
	}
	// Large streaming responses are common for dynamic calls.
	opts = append(opts, grpctransport.WithCallOptions(grpc.MaxCallRecvMsgSize(64<<20)))
	return opts
}

func isWebSocket(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}

// parseHeaders turns "key: value" pairs into metadata.
func parseHeaders(pairs []string) (metadata.MD, error) {
	md := metadata.MD{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, apperrors.ValidationError{Field: "header", Message: fmt.Sprintf("%q is not key: value", p)}
		}
		md.Append(k, strings.TrimSpace(v))
	}
	return md, nil
}

func httpHeader(md metadata.MD) http.Header {
	h := http.Header{}
	for k, vs := range md {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}
