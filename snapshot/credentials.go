// Package snapshot provides best-effort durable export/import of a
// collection's catalog (spec section 6's $CM_/$CS_/$CO_/$DI_/$SI_ keys)
// to and from an S3-compatible bucket. This is additive durability
// layered above the abstract store.Store the spec keeps external (spec
// section 1); it is not a reimplementation of the KV engine itself.
//
// Grounded on libaf/s3/minio.go's Credentials/NewMinioClient (see
// DESIGN.md): this package keeps the same endpoint-parsing and client
// construction, scoped down to what snapshot export/import needs.
package snapshot

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Credentials configures the S3-compatible endpoint a snapshot is
// written to or read from.
type Credentials struct {
	Endpoint        string
	AccessKeyId     string
	SecretAccessKey string
	SessionToken    string
	UseSsl          bool
}

// NewMinioClient creates a Minio client from Credentials. The endpoint
// can be either a bare hostname or a full URL; a URL's scheme is
// stripped and used to infer the SSL setting.
func (creds Credentials) NewMinioClient() (*minio.Client, error) {
	if creds.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if creds.AccessKeyId == "" {
		return nil, errors.New("access key ID is required")
	}
	if creds.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}

	endpoint, secure := parseEndpoint(creds.Endpoint, creds.UseSsl)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKeyId, creds.SecretAccessKey, creds.SessionToken),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client for endpoint %s: %w", endpoint, err)
	}
	return client, nil
}

func parseEndpoint(endpoint string, useSsl bool) (string, bool) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		parsed, err := url.Parse(endpoint)
		if err == nil && parsed.Host != "" {
			return parsed.Host, parsed.Scheme == "https"
		}
	}
	return endpoint, useSsl
}
