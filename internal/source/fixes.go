package source

import (
	"log/slog"
	"strings"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	// Well-known types are registered globally so reflection can fall back to
	// them and fixDescriptors can swap them in.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/apipb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/sourcecontextpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/typepb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// fixDescriptors repairs common server quirks in reflected descriptors, in
// place:
//   - google/protobuf files are replaced by the local copies, since servers
//     built against old protobuf releases ship stale or partial versions
//   - reserved ranges with start after end are swapped
func fixDescriptors(set *descriptorpb.FileDescriptorSet, logger *slog.Logger) {
	for i, f := range set.GetFile() {
		if strings.HasPrefix(f.GetName(), "google/protobuf/") {
			if fd, err := protoregistry.GlobalFiles.FindFileByPath(f.GetName()); err == nil {
				set.File[i] = protodesc.ToFileDescriptorProto(fd)
				logger.Debug("replaced well-known file with local copy", "file", f.GetName())
				continue
			}
		}
		for _, m := range f.GetMessageType() {
			fixReservedRanges(m, logger)
		}
	}
}

func fixReservedRanges(m *descriptorpb.DescriptorProto, logger *slog.Logger) {
	for _, r := range m.GetReservedRange() {
		if r.GetStart() > r.GetEnd() {
			logger.Debug("swapped reversed reserved range", "message", m.GetName(), "start", r.GetStart(), "end", r.GetEnd())
			r.Start, r.End = r.End, r.Start
		}
	}
	for _, nested := range m.GetNestedType() {
		fixReservedRanges(nested, logger)
	}
}
