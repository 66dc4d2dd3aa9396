package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/rtl"
	"github.com/chazu/rtl/wire"
)

// InspectService answers read-only RTTI queries. It reads the runtime's
// registries directly; they are safe for concurrent readers.
type InspectService struct {
	rt *rtl.Runtime
	ld *loader.Loader
}

// NewInspectService creates an InspectService. ld may be nil.
func NewInspectService(rt *rtl.Runtime, ld *loader.Loader) *InspectService {
	return &InspectService{rt: rt, ld: ld}
}

// Snapshot returns the whole RTTI snapshot and its digest.
func (s *InspectService) Snapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotResponse, error) {
	snap := wire.Capture(s.rt, s.ld)
	digest, err := snap.Digest()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &SnapshotResponse{Snapshot: snap, Digest: digest[:]}, nil
}

// Class describes one class.
func (s *InspectService) Class(ctx context.Context, req *ClassRequest) (*ClassResponse, error) {
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "class name is required")
	}
	c, err := s.rt.LookupClass(req.Name)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	resp := &ClassResponse{Class: wire.ClassOf(c)}
	for current := c; current != nil; current = current.Ancestor {
		resp.Chain = append(resp.Chain, current.Name)
	}
	for sel := 0; sel < c.VTable.MethodCount(); sel++ {
		if c.VTable.Lookup(sel) != nil {
			resp.Methods = append(resp.Methods, s.rt.Selectors.Name(sel))
		}
	}
	return resp, nil
}

// Interface describes one interface, looked up by name or GUID. When
// several interfaces share a GUID the first registered answers.
func (s *InspectService) Interface(ctx context.Context, req *InterfaceRequest) (*InterfaceResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "interface name or GUID is required")
	}
	intf, ok := s.rt.ResolveInterface(req.Key)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "interface %q not found", req.Key)
	}

	resp := &InterfaceResponse{
		Interface:  wire.InterfaceOf(intf),
		AllMethods: intf.AllMethods(),
	}
	for _, c := range s.rt.Classes.All() {
		if c.ImplementsGUID(intf.GUID) {
			resp.Implementors = append(resp.Implementors, c.Name)
		}
	}
	return resp, nil
}

// Units returns the loader journal.
func (s *InspectService) Units(ctx context.Context, req *UnitsRequest) (*UnitsResponse, error) {
	if s.ld == nil {
		return &UnitsResponse{}, nil
	}
	return &UnitsResponse{Units: wire.UnitsOf(s.ld)}, nil
}
