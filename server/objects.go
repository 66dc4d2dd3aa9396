package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chazu/rtl/rtl"
)

// ObjectService lets clients construct instances, call their methods,
// dispatch messages, query interfaces and release them. Instances are
// referred to by handle; every operation runs on the worker.
type ObjectService struct {
	worker  *Worker
	handles *HandleStore
}

// NewObjectService creates an ObjectService.
func NewObjectService(worker *Worker, handles *HandleStore) *ObjectService {
	return &ObjectService{worker: worker, handles: handles}
}

// Create constructs an instance of the named class.
func (s *ObjectService) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	if req.Class == "" {
		return nil, status.Error(codes.InvalidArgument, "class name is required")
	}
	result, err := s.worker.Do(func(rt *rtl.Runtime) (any, error) {
		c, err := rt.LookupClass(req.Class)
		if err != nil {
			return nil, err
		}
		inst, err := c.Construct(req.Args...)
		if err != nil {
			return nil, err
		}
		id, err := s.handles.Create(inst, true)
		if err != nil {
			inst.Free()
			return nil, err
		}
		return &CreateResponse{Handle: id, Class: c.Name, RefCount: inst.RefCount()}, nil
	})
	if err != nil {
		return nil, statusFor(err)
	}
	return result.(*CreateResponse), nil
}

// Call invokes the method in the named vtable slot.
func (s *ObjectService) Call(ctx context.Context, req *CallRequest) (*CallResponse, error) {
	if req.Method == "" {
		return nil, status.Error(codes.InvalidArgument, "method name is required")
	}
	result, err := s.withInstance(req.Handle, func(inst *rtl.Instance) (any, error) {
		v, err := inst.Call(req.Method, req.Args...)
		if err != nil {
			return nil, err
		}
		if other, ok := v.(*rtl.Instance); ok {
			id, err := s.handles.Create(other, false)
			if err != nil {
				return nil, err
			}
			return &CallResponse{Handle: id}, nil
		}
		return &CallResponse{Result: plain(v)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*CallResponse), nil
}

// Dispatch routes a message through the instance's message tables.
func (s *ObjectService) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	result, err := s.withInstance(req.Handle, func(inst *rtl.Instance) (any, error) {
		if req.StrID != "" {
			msg := &rtl.StrMessage{ID: req.StrID, Payload: req.Payload}
			if err := inst.DispatchStr(msg); err != nil {
				return nil, err
			}
			return &DispatchResponse{Result: plain(msg.Result)}, nil
		}
		msg := &rtl.Message{ID: req.ID, Payload: req.Payload}
		if err := inst.Dispatch(msg); err != nil {
			return nil, err
		}
		return &DispatchResponse{Result: plain(msg.Result)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*DispatchResponse), nil
}

// Query asks the instance for an interface. A hit yields a new handle that
// holds its own reference; a miss is not an error.
func (s *ObjectService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req.Interface == "" {
		return nil, status.Error(codes.InvalidArgument, "interface name or GUID is required")
	}
	result, err := s.withInstance(req.Handle, func(inst *rtl.Instance) (any, error) {
		found, ok := inst.QueryInterfaceByName(req.Interface)
		if !ok {
			return &QueryResponse{}, nil
		}
		id, err := s.handles.Create(found, false)
		if err != nil {
			return nil, err
		}
		return &QueryResponse{Supported: true, Handle: id, RefCount: found.RefCount()}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*QueryResponse), nil
}

// Release drops a handle.
func (s *ObjectService) Release(ctx context.Context, req *ReleaseRequest) (*ReleaseResponse, error) {
	if req.Handle == "" {
		return nil, status.Error(codes.InvalidArgument, "handle is required")
	}
	result, err := s.worker.Do(func(*rtl.Runtime) (any, error) {
		if _, ok := s.handles.Lookup(req.Handle); !ok {
			return nil, errHandle(req.Handle)
		}
		n, destroyed, err := s.handles.Release(req.Handle)
		if err != nil {
			return nil, err
		}
		return &ReleaseResponse{RefCount: n, Destroyed: destroyed}, nil
	})
	if err != nil {
		return nil, statusFor(err)
	}
	return result.(*ReleaseResponse), nil
}

// withInstance resolves a handle and runs fn on the worker.
func (s *ObjectService) withInstance(id string, fn func(*rtl.Instance) (any, error)) (any, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "handle is required")
	}
	result, err := s.worker.Do(func(*rtl.Runtime) (any, error) {
		inst, ok := s.handles.Lookup(id)
		if !ok {
			return nil, errHandle(id)
		}
		return fn(inst)
	})
	if err != nil {
		return nil, statusFor(err)
	}
	return result, nil
}

type handleError string

func (e handleError) Error() string { return "handle " + string(e) + " not found" }

func errHandle(id string) error { return handleError(id) }

// statusFor maps runtime errors onto gRPC status codes.
func statusFor(err error) error {
	var he handleError
	switch {
	case errors.As(err, &he),
		errors.Is(err, rtl.ErrUnknownClass),
		errors.Is(err, rtl.ErrUnknownInterface),
		errors.Is(err, rtl.ErrNoMethod):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, rtl.ErrDestroyed),
		errors.Is(err, rtl.ErrHeapConsistency),
		errors.Is(err, rtl.ErrNotRefCounted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrWorkerStopped):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

// plain converts values without a CBOR form of their own.
func plain(v any) any {
	switch v := v.(type) {
	case rtl.GUID:
		return v.String()
	case *rtl.Instance:
		return v.String()
	case *rtl.Class:
		return v.Name
	}
	return v
}
