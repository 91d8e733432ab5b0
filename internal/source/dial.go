package source

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/shhac/nrpc/internal/errors"
)

// Connection describes how to reach a server.
type Connection struct {
	Address string
	// TLS enables transport security; Insecure skips certificate checks.
	TLS      bool
	Insecure bool
}

// Dial creates a client connection. Like grpc.NewClient it does not block;
// failures to connect surface on the first call.
func Dial(cfg Connection, logger *slog.Logger, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if cfg.Address == "" {
		return nil, apperrors.ValidationError{Field: "address", Message: "must not be empty"}
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: false,
		}),
	}

	if cfg.TLS {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.Insecure {
			tlsCfg.InsecureSkipVerify = true
			logger.Warn("using insecure TLS connection (skipping certificate verification)")
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		logger.Debug("using plaintext connection")
	}

	conn, err := grpc.NewClient(cfg.Address, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConnectionFailed, cfg.Address, err)
	}
	logger.Debug("client created", slog.String("address", cfg.Address), slog.Bool("tls", cfg.TLS))
	return conn, nil
}
