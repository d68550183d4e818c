package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/dialog-db/dialog/auth"
	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/invariant"
)

// AddressKind discriminates the backend an Address routes to.
type AddressKind uint8

const (
	AddressS3 AddressKind = iota
)

// Address identifies one remote endpoint.
type Address struct {
	Kind   AddressKind
	Host   string
	Bucket string
	Region string
}

// normalized is the connection cache key.
func (a Address) normalized() string {
	return fmt.Sprintf("%d/%s/%s/%s", a.Kind, a.Host, a.Bucket, a.Region)
}

// Connection bundles the effects dispatched to one remote endpoint.
type Connection struct {
	Archive Archive
	Memory  Memory
}

// ConnectionFactory opens a Connection for addr. RemoteRouter caches one
// Connection per normalized address and calls the factory only when that
// address has none cached; concurrent first calls for the same address
// may each invoke it, and the first result stored is the one kept.
type ConnectionFactory func(ctx context.Context, addr Address) (*Connection, error)

// RemoteRouter dispatches Archive/Memory effects to the backend matched by
// an Address, reusing one Connection per normalized address.
type RemoteRouter struct {
	factory ConnectionFactory

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewRemoteRouter constructs a router that opens connections via factory.
func NewRemoteRouter(factory ConnectionFactory) *RemoteRouter {
	return &RemoteRouter{factory: factory, connections: map[string]*Connection{}}
}

func (r *RemoteRouter) connect(ctx context.Context, addr Address) (*Connection, error) {
	key := addr.normalized()

	r.mu.Lock()
	if conn, ok := r.connections[key]; ok {
		r.mu.Unlock()
		return conn, nil
	}
	r.mu.Unlock()

	conn, err := r.factory(ctx, addr)
	if err != nil {
		return nil, transportFailure(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.connections[key]; ok {
		return existing, nil
	}
	r.connections[key] = conn
	return conn, nil
}

// Get dispatches an Archive.Get to addr.
func (r *RemoteRouter) Get(ctx context.Context, addr Address, hash blake3hash.Hash) ([]byte, bool, error) {
	conn, err := r.connect(ctx, addr)
	if err != nil {
		return nil, false, err
	}
	data, ok, err := conn.Archive.Get(ctx, hash)
	if err != nil {
		return nil, false, transportFailure(err)
	}
	return data, ok, nil
}

// Put dispatches an Archive.Put to addr.
func (r *RemoteRouter) Put(ctx context.Context, addr Address, hash blake3hash.Hash, data []byte) error {
	conn, err := r.connect(ctx, addr)
	if err != nil {
		return err
	}
	if err := conn.Archive.Put(ctx, hash, data); err != nil {
		return transportFailure(err)
	}
	return nil
}

// Resolve dispatches a Memory.Resolve to addr.
func (r *RemoteRouter) Resolve(ctx context.Context, addr Address, key string) (Publication, bool, error) {
	conn, err := r.connect(ctx, addr)
	if err != nil {
		return Publication{}, false, err
	}
	pub, ok, err := conn.Memory.Resolve(ctx, key)
	if err != nil {
		return Publication{}, false, transportFailure(err)
	}
	return pub, ok, nil
}

// Publish dispatches a Memory.Publish to addr.
func (r *RemoteRouter) Publish(ctx context.Context, addr Address, key string, content []byte, expected *string) (string, error) {
	conn, err := r.connect(ctx, addr)
	if err != nil {
		return "", err
	}
	return conn.Memory.Publish(ctx, key, content, expected)
}

// Retract dispatches a Memory.Retract to addr.
func (r *RemoteRouter) Retract(ctx context.Context, addr Address, key, expected string) error {
	conn, err := r.connect(ctx, addr)
	if err != nil {
		return err
	}
	return conn.Memory.Retract(ctx, key, expected)
}

// PresignedGetURL issues an AWS SigV4 presigned GET URL for objectKey at
// addr, gated behind an already-checked UCAN invocation time window.
func PresignedGetURL(addr Address, objectKey string, creds Credentials, expirySeconds int, checked auth.TimeRange, clock Clock) (string, error) {
	return presignChecked("GET", addr, objectKey, creds, expirySeconds, checked, clock)
}

// PresignedPutURL issues an AWS SigV4 presigned PUT URL, gated the same
// way as PresignedGetURL.
func PresignedPutURL(addr Address, objectKey string, creds Credentials, expirySeconds int, checked auth.TimeRange, clock Clock) (string, error) {
	return presignChecked("PUT", addr, objectKey, creds, expirySeconds, checked, clock)
}

// PresignedDeleteURL issues an AWS SigV4 presigned DELETE URL, gated the
// same way as PresignedGetURL.
func PresignedDeleteURL(addr Address, objectKey string, creds Credentials, expirySeconds int, checked auth.TimeRange, clock Clock) (string, error) {
	return presignChecked("DELETE", addr, objectKey, creds, expirySeconds, checked, clock)
}

func presignChecked(method string, addr Address, objectKey string, creds Credentials, expirySeconds int, checked auth.TimeRange, clock Clock) (string, error) {
	invariant.Precondition(!checked.Empty(), "presigning requires a non-empty checked invocation time window")

	return PresignURL(PresignRequest{
		Method:  method,
		Host:    addr.Host,
		Path:    "/" + objectKey,
		Region:  addr.Region,
		Bucket:  addr.Bucket,
		Key:     objectKey,
		Expires: expirySeconds,
	}, creds, clock)
}
