package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/dialog-db/dialog/auth"
	"github.com/dialog-db/dialog/internal/blake3hash"
)

// HTTPDoer is the subset of *http.Client used by S3Archive/S3Cells, so
// tests can substitute a recording or failing transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// S3Archive is an Archive backed by presigned S3 requests. Checked must
// be the time window returned by auth.Check for the invocation this
// Archive is serving. Presigning panics with an invariant violation on an
// empty (inverted) window; it does not compare the window against the
// clock, so an expired or not-yet-valid window is not rejected.
type S3Archive struct {
	Address       Address
	Credentials   Credentials
	Clock         Clock
	Client        HTTPDoer
	ExpirySeconds int
	Checked       auth.TimeRange
}

func (a *S3Archive) objectKey(hash blake3hash.Hash) string {
	return "blobs/" + hash.String()
}

// Get fetches the object at hash via a presigned GET, gated behind an
// already-checked invocation window.
func (a *S3Archive) Get(ctx context.Context, hash blake3hash.Hash) ([]byte, bool, error) {
	url, err := PresignedGetURL(a.Address, a.objectKey(hash), a.Credentials, a.ExpirySeconds, a.Checked, a.Clock)
	if err != nil {
		return nil, false, transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, transportFailure(err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, false, transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode >= 300 {
		return nil, false, transportFailure(httpStatusError(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, transportFailure(err)
	}
	return data, true, nil
}

// Put writes data under hash via a presigned PUT. Idempotent: re-putting
// identical content under the same hash is a harmless overwrite.
func (a *S3Archive) Put(ctx context.Context, hash blake3hash.Hash, data []byte) error {
	url, err := PresignedPutURL(a.Address, a.objectKey(hash), a.Credentials, a.ExpirySeconds, a.Checked, a.Clock)
	if err != nil {
		return transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return transportFailure(err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return transportFailure(httpStatusError(resp.StatusCode))
	}
	return nil
}

// S3Cells is a Memory backed by presigned S3 requests, using ETags as
// Editions. Checked is the time window returned by auth.Check for the
// invocation this Memory is serving.
type S3Cells struct {
	Address       Address
	Credentials   Credentials
	Clock         Clock
	Client        HTTPDoer
	ExpirySeconds int
	Checked       auth.TimeRange
}

func (c *S3Cells) cellKey(key string) string { return "cells/" + key }

func (c *S3Cells) Resolve(ctx context.Context, key string) (Publication, bool, error) {
	url, err := PresignedGetURL(c.Address, c.cellKey(key), c.Credentials, c.ExpirySeconds, c.Checked, c.Clock)
	if err != nil {
		return Publication{}, false, transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Publication{}, false, transportFailure(err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Publication{}, false, transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Publication{}, false, nil
	}
	if resp.StatusCode >= 300 {
		return Publication{}, false, transportFailure(httpStatusError(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Publication{}, false, transportFailure(err)
	}
	return Publication{Content: data, Edition: resp.Header.Get("ETag")}, true, nil
}

// Publish writes content under key via a presigned PUT, using If-Match
// (or If-None-Match: * for a nil expected edition) to enforce CAS.
func (c *S3Cells) Publish(ctx context.Context, key string, content []byte, expected *string) (string, error) {
	url, err := PresignedPutURL(c.Address, c.cellKey(key), c.Credentials, c.ExpirySeconds, c.Checked, c.Clock)
	if err != nil {
		return "", transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(content))
	if err != nil {
		return "", transportFailure(err)
	}
	if expected == nil {
		req.Header.Set("If-None-Match", "*")
	} else {
		req.Header.Set("If-Match", *expected)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed {
		return "", EditionMismatch(key)
	}
	if resp.StatusCode >= 300 {
		return "", transportFailure(httpStatusError(resp.StatusCode))
	}
	return resp.Header.Get("ETag"), nil
}

// Retract deletes key via a presigned DELETE gated on expected's edition.
func (c *S3Cells) Retract(ctx context.Context, key, expected string) error {
	url, err := PresignedDeleteURL(c.Address, c.cellKey(key), c.Credentials, c.ExpirySeconds, c.Checked, c.Clock)
	if err != nil {
		return transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return transportFailure(err)
	}
	req.Header.Set("If-Match", expected)

	resp, err := c.Client.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed {
		return EditionMismatch(key)
	}
	if resp.StatusCode >= 300 {
		return transportFailure(httpStatusError(resp.StatusCode))
	}
	return nil
}

func httpStatusError(code int) error {
	return &Error{Kind: KindStorage, Message: http.StatusText(code)}
}
