package grpctransport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/reflect/protodesc"

	"github.com/shhac/nrpc/rpc"
)

// RegisterReflection serves gRPC reflection on reg for every service of r,
// with descriptors resolved from files. Services registered on reg directly
// are not listed.
func RegisterReflection(reg grpc.ServiceRegistrar, r *rpc.Router, files protodesc.Resolver) {
	reflectionpb.RegisterServerReflectionServer(reg, reflection.NewServerV1(reflection.ServerOptions{
		Services:           routerServices{r},
		DescriptorResolver: files,
	}))
}

// routerServices lists a router's services the way a grpc.Server lists its
// own.
type routerServices struct {
	router *rpc.Router
}

func (s routerServices) GetServiceInfo() map[string]grpc.ServiceInfo {
	out := make(map[string]grpc.ServiceInfo)
	for _, name := range s.router.Services() {
		out[name] = grpc.ServiceInfo{}
	}
	return out
}
