package remote_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() remote.FixedClock {
	return remote.FixedClock{Timestamp: "20260731T000000Z", Date: "20260731"}
}

func TestPresignURLShape(t *testing.T) {
	creds := remote.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}
	url, err := remote.PresignURL(remote.PresignRequest{
		Method:  "GET",
		Host:    "s3.amazonaws.com",
		Path:    "/blobs/deadbeef",
		Region:  "us-east-1",
		Bucket:  "dialog-bucket",
		Key:     "blobs/deadbeef",
		Expires: 900,
	}, creds, fixedClock())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://dialog-bucket.s3.amazonaws.com/blobs/deadbeef?"))
	assert.Contains(t, url, "X-Amz-Algorithm=AWS4-HMAC-SHA256")
	assert.Contains(t, url, "X-Amz-Credential=AKIDEXAMPLE%2F20260731%2Fus-east-1%2Fs3%2Faws4_request")
	assert.Contains(t, url, "X-Amz-Expires=900")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestPresignURLDeterministic(t *testing.T) {
	creds := remote.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}
	req := remote.PresignRequest{
		Method: "GET", Host: "s3.amazonaws.com", Path: "/cells/branch-a",
		Region: "us-west-2", Bucket: "dialog-bucket", Key: "cells/branch-a", Expires: 300,
	}
	first, err := remote.PresignURL(req, creds, fixedClock())
	require.NoError(t, err)
	second, err := remote.PresignURL(req, creds, fixedClock())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRouterReusesConnectionForSameAddress(t *testing.T) {
	calls := 0
	addr := remote.Address{Kind: remote.AddressS3, Host: "s3.amazonaws.com", Bucket: "b", Region: "us-east-1"}

	router := remote.NewRemoteRouter(func(ctx context.Context, a remote.Address) (*remote.Connection, error) {
		calls++
		return &remote.Connection{Archive: remote.NewMemoryArchive(), Memory: remote.NewMemoryCells()}, nil
	})

	ctx := context.Background()
	hash := blake3hash.Sum([]byte("x"))
	_, _, err := router.Get(ctx, addr, hash)
	require.NoError(t, err)
	_, _, err = router.Get(ctx, addr, hash)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "connection factory should be invoked once per normalized address")
}

func TestRouterOpensSeparateConnectionsForDifferentAddresses(t *testing.T) {
	calls := 0
	router := remote.NewRemoteRouter(func(ctx context.Context, a remote.Address) (*remote.Connection, error) {
		calls++
		return &remote.Connection{Archive: remote.NewMemoryArchive(), Memory: remote.NewMemoryCells()}, nil
	})

	ctx := context.Background()
	a1 := remote.Address{Kind: remote.AddressS3, Host: "s3.amazonaws.com", Bucket: "b1", Region: "us-east-1"}
	a2 := remote.Address{Kind: remote.AddressS3, Host: "s3.amazonaws.com", Bucket: "b2", Region: "us-east-1"}

	_, _, err := router.Get(ctx, a1, blake3hash.Zero)
	require.NoError(t, err)
	_, _, err = router.Get(ctx, a2, blake3hash.Zero)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestMemoryArchivePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	archive := remote.NewMemoryArchive()
	data := []byte("blob content")
	hash := blake3hash.Sum(data)

	require.NoError(t, archive.Put(ctx, hash, data))
	require.NoError(t, archive.Put(ctx, hash, data))

	got, ok, err := archive.Get(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestMemoryArchiveGetMissingReturnsFalse(t *testing.T) {
	ctx := context.Background()
	archive := remote.NewMemoryArchive()
	_, ok, err := archive.Get(ctx, blake3hash.Sum([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCellsPublishRejectsStaleEdition(t *testing.T) {
	ctx := context.Background()
	cells := remote.NewMemoryCells()

	edition, err := cells.Publish(ctx, "branch-a", []byte("v1"), nil)
	require.NoError(t, err)

	stale := "not-" + edition
	_, err = cells.Publish(ctx, "branch-a", []byte("v2"), &stale)
	require.Error(t, err)

	var remoteErr *remote.Error
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, remote.KindEditionMismatch, remoteErr.Kind)
}

func TestMemoryCellsPublishSucceedsWithCorrectEdition(t *testing.T) {
	ctx := context.Background()
	cells := remote.NewMemoryCells()

	edition, err := cells.Publish(ctx, "branch-a", []byte("v1"), nil)
	require.NoError(t, err)

	newEdition, err := cells.Publish(ctx, "branch-a", []byte("v2"), &edition)
	require.NoError(t, err)
	assert.NotEqual(t, edition, newEdition)

	pub, ok, err := cells.Resolve(ctx, "branch-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), pub.Content)
	assert.Equal(t, newEdition, pub.Edition)
}

func TestMemoryCellsPublishRequiresEmptyOnFirstWrite(t *testing.T) {
	ctx := context.Background()
	cells := remote.NewMemoryCells()

	_, err := cells.Publish(ctx, "branch-a", []byte("v1"), nil)
	require.NoError(t, err)

	_, err = cells.Publish(ctx, "branch-a", []byte("v2"), nil)
	require.Error(t, err)
}

func TestMemoryCellsRetractRequiresMatchingEdition(t *testing.T) {
	ctx := context.Background()
	cells := remote.NewMemoryCells()

	edition, err := cells.Publish(ctx, "branch-a", []byte("v1"), nil)
	require.NoError(t, err)

	require.Error(t, cells.Retract(ctx, "branch-a", "wrong-edition"))
	require.NoError(t, cells.Retract(ctx, "branch-a", edition))

	_, ok, err := cells.Resolve(ctx, "branch-a")
	require.NoError(t, err)
	assert.False(t, ok)
}
