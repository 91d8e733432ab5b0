package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/shhac/nrpc/gen"
	apperrors "github.com/shhac/nrpc/internal/errors"
)

var reflectionServices = map[string]bool{
	"grpc.reflection.v1alpha.ServerReflection": true,
	"grpc.reflection.v1.ServerReflection":      true,
}

// FromReflection downloads the schema of every service a server exposes
// through gRPC reflection. The v1 and v1alpha protocols are both tried, and
// well-known types missing on the server fall back to local copies.
func FromReflection(ctx context.Context, conn grpc.ClientConnInterface, logger *slog.Logger) (*Schema, error) {
	logger.Debug("listing services via reflection")

	refClient := grpcreflect.NewClientAuto(ctx, conn)
	defer refClient.Reset()

	refClient.AllowFallbackResolver(protoregistry.GlobalFiles, protoregistry.GlobalTypes)
	refClient.AllowMissingFileDescriptors()

	names, err := refClient.ListServices()
	if err != nil {
		if status.Code(err) == codes.Unimplemented {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrReflectionUnavailable, err)
		}
		return nil, fmt.Errorf("%w: list services: %v", apperrors.ErrConnectionFailed, err)
	}

	var files []*desc.FileDescriptor
	var generate []string
	seen := make(map[string]bool)
	for _, name := range names {
		if reflectionServices[name] {
			logger.Debug("skipping internal reflection service", "service", name)
			continue
		}
		sd, err := refClient.ResolveService(name)
		if err != nil {
			logger.Warn("failed to resolve service", "service", name, "error", err)
			continue
		}
		fd := sd.GetFile()
		if !seen[fd.GetName()] {
			seen[fd.GetName()] = true
			files = append(files, fd)
			generate = append(generate, fd.GetName())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no resolvable services", apperrors.ErrInvalidDescriptor)
	}

	logger.Info("discovered services via reflection", "files", len(files))
	set := gen.DescriptorSet(files...)
	fixDescriptors(set, logger)
	return NewSchema(set, "reflection", generate...)
}
