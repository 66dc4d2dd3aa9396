package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the rtl.Inspect and rtl.Objects services.
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// Dial connects to a server at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, own: true}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if Dial opened it.
func (c *Client) Close() error {
	if c.own {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, service, method string, req, resp any) error {
	return c.conn.Invoke(ctx, "/"+service+"/"+method, req, resp, grpc.ForceCodec(Codec{}))
}

// Snapshot fetches the full RTTI snapshot.
func (c *Client) Snapshot(ctx context.Context) (*SnapshotResponse, error) {
	resp := new(SnapshotResponse)
	if err := c.invoke(ctx, InspectServiceName, "Snapshot", &SnapshotRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Class describes the named class.
func (c *Client) Class(ctx context.Context, name string) (*ClassResponse, error) {
	resp := new(ClassResponse)
	if err := c.invoke(ctx, InspectServiceName, "Class", &ClassRequest{Name: name}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Interface describes an interface given by name or GUID text.
func (c *Client) Interface(ctx context.Context, key string) (*InterfaceResponse, error) {
	resp := new(InterfaceResponse)
	if err := c.invoke(ctx, InspectServiceName, "Interface", &InterfaceRequest{Key: key}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Units fetches the loader journal.
func (c *Client) Units(ctx context.Context) (*UnitsResponse, error) {
	resp := new(UnitsResponse)
	if err := c.invoke(ctx, InspectServiceName, "Units", &UnitsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Create constructs an instance of class on the server.
func (c *Client) Create(ctx context.Context, class string, args ...any) (*CreateResponse, error) {
	resp := new(CreateResponse)
	if err := c.invoke(ctx, ObjectServiceName, "Create", &CreateRequest{Class: class, Args: args}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Call invokes a method on the instance behind handle.
func (c *Client) Call(ctx context.Context, handle, method string, args ...any) (*CallResponse, error) {
	resp := new(CallResponse)
	if err := c.invoke(ctx, ObjectServiceName, "Call", &CallRequest{Handle: handle, Method: method, Args: args}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Dispatch sends a message through the instance's message tables.
func (c *Client) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	resp := new(DispatchResponse)
	if err := c.invoke(ctx, ObjectServiceName, "Dispatch", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Query asks the instance behind handle for an interface.
func (c *Client) Query(ctx context.Context, handle, intf string) (*QueryResponse, error) {
	resp := new(QueryResponse)
	if err := c.invoke(ctx, ObjectServiceName, "Query", &QueryRequest{Handle: handle, Interface: intf}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Release drops a handle.
func (c *Client) Release(ctx context.Context, handle string) (*ReleaseResponse, error) {
	resp := new(ReleaseResponse)
	if err := c.invoke(ctx, ObjectServiceName, "Release", &ReleaseRequest{Handle: handle}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
