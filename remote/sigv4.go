package remote

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// PresignRequest describes one S3 request to presign.
type PresignRequest struct {
	Method  string
	Host    string
	Path    string
	Region  string
	Bucket  string
	Key     string
	Expires int // seconds
}

// Credentials is the access key pair used to sign requests.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Timestamps are "YYYYMMDDTHHMMSSZ" and dates "YYYYMMDD";
// Clock implementations are responsible for producing them in that shape.
const (
	service   = "s3"
	algorithm = "AWS4-HMAC-SHA256"
)

// Clock abstracts the current time, so signing is deterministic under
// test.
type Clock interface {
	Now() (timestamp, date string)
}

// PresignURL produces an AWS SigV4 presigned URL for req, signed with
// creds at the instant reported by clock.
func PresignURL(req PresignRequest, creds Credentials, clock Clock) (string, error) {
	timestamp, date := clock.Now()
	scope := fmt.Sprintf("%s/%s/%s/aws4_request", date, req.Region, service)
	credential := fmt.Sprintf("%s/%s", creds.AccessKeyID, scope)

	host := fmt.Sprintf("%s.%s", req.Bucket, req.Host)
	query := map[string]string{
		"X-Amz-Algorithm":     algorithm,
		"X-Amz-Content-Sha256": "UNSIGNED-PAYLOAD",
		"X-Amz-Credential":    credential,
		"X-Amz-Date":          timestamp,
		"X-Amz-Expires":       fmt.Sprintf("%d", req.Expires),
		"X-Amz-SignedHeaders": "host",
	}
	canonicalQuery := canonicalQueryString(query)
	canonicalHeaders := "host:" + host + "\n"
	signedHeaders := "host"

	canonicalRequest := strings.Join([]string{
		req.Method,
		encodePath(req.Path),
		canonicalQuery,
		canonicalHeaders,
		signedHeaders,
		"UNSIGNED-PAYLOAD",
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		timestamp,
		scope,
		hashHex(canonicalRequest),
	}, "\n")

	signingKey := deriveSigningKey(creds.SecretAccessKey, date, req.Region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return fmt.Sprintf("https://%s%s?%s&X-Amz-Signature=%s", host, req.Path, canonicalQuery, signature), nil
}

// deriveSigningKey implements the four-step HMAC chain:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func deriveSigningKey(secret, date, region string) []byte {
	dateKey := hmacSHA256([]byte("AWS4"+secret), date)
	regionKey := hmacSHA256(dateKey, region)
	serviceKey := hmacSHA256(regionKey, service)
	return hmacSHA256(serviceKey, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// canonicalQueryString sorts and percent-encodes query parameters
// matching encodeURIComponent (uppercase hex).
func canonicalQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, encodeURIComponent(k)+"="+encodeURIComponent(params[k]))
	}
	return strings.Join(parts, "&")
}

// encodeURIComponent percent-encodes s the way JavaScript's
// encodeURIComponent does: everything except unreserved characters, with
// uppercase hex digits.
func encodeURIComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// encodePath percent-encodes a URL path's segments without touching the
// separating slashes.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = encodeURIComponent(seg)
	}
	return strings.Join(segments, "/")
}

// SystemClock adapts an injected now-function to Clock, keeping the
// package itself free of an ambient time.Now() call.
type SystemClock struct{ Now_ func() (string, string) }

func (c SystemClock) Now() (string, string) { return c.Now_() }

// FixedClock returns a constant timestamp/date pair, for deterministic
// signing tests.
type FixedClock struct {
	Timestamp string
	Date      string
}

func (c FixedClock) Now() (string, string) { return c.Timestamp, c.Date }
