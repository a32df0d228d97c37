package snapshot

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/antflydb/collectioncore/jsonutil"
	"github.com/antflydb/collectioncore/store"
)

// record is one catalog key/value pair, base64-framed so arbitrary
// binary keys (the big-endian seq_id suffix of an $SI_ key) and values
// round-trip through a line-delimited JSON object.
type record struct {
	K string `json:"k"`
	V string `json:"v"`
}

func encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decode(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// Exporter writes and reads collection snapshots against one S3-
// compatible bucket.
type Exporter struct {
	client *minio.Client
	bucket string
}

// NewExporter creates an Exporter, verifying the bucket exists.
func NewExporter(ctx context.Context, creds Credentials, bucket string) (*Exporter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := creds.NewMinioClient()
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking if bucket %s exists: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	return &Exporter{client: client, bucket: bucket}, nil
}

// Export scans every key under each of prefixes (collection.CatalogPrefixes,
// spec section 6's key scheme) and uploads them as a single newline-
// delimited-JSON object. Keys are scanned in the order given, preserving
// the catalog-before-documents ordering CatalogPrefixes returns so a
// reader can stop early once it has seen the meta record.
func (e *Exporter) Export(ctx context.Context, kv store.Store, prefixes [][]byte, objectKey string) error {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)

	go func() {
		w := bufio.NewWriter(pw)
		var scanErr error
		for _, prefix := range prefixes {
			prefix := prefix
			if err := kv.ScanPrefix(ctx, prefix, func(kvp store.KeyValue) bool {
				rec := record{K: encode(kvp.Key), V: encode(kvp.Value)}
				line, err := jsonutil.Marshal(rec)
				if err != nil {
					scanErr = fmt.Errorf("encoding snapshot record for key %x: %w", kvp.Key, err)
					return false
				}
				if _, err := w.Write(line); err != nil {
					scanErr = err
					return false
				}
				return w.WriteByte('\n') == nil
			}); err != nil {
				scanErr = fmt.Errorf("scanning prefix %x for snapshot: %w", prefix, err)
				break
			}
			if scanErr != nil {
				break
			}
		}
		if scanErr == nil {
			scanErr = w.Flush()
		}
		errCh <- scanErr
		pw.CloseWithError(scanErr)
	}()

	_, err := e.client.PutObject(ctx, e.bucket, objectKey, pr, -1, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	scanErr := <-errCh
	if scanErr != nil {
		return fmt.Errorf("building snapshot for object %s: %w", objectKey, scanErr)
	}
	if err != nil {
		return fmt.Errorf("uploading snapshot object %s to bucket %s: %w", objectKey, e.bucket, err)
	}
	return nil
}

// Import downloads a snapshot object and replays its key/value pairs
// into kv in fixed-size batches via store.Store.BatchWrite, spec
// section 4.2's durable-batch-write contract. It returns the number of
// keys replayed.
func (e *Exporter) Import(ctx context.Context, kv store.Store, objectKey string) (int, error) {
	obj, err := e.client.GetObject(ctx, e.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("downloading snapshot object %s from bucket %s: %w", objectKey, e.bucket, err)
	}
	defer obj.Close()

	const importBatchSize = 500

	scanner := bufio.NewScanner(obj)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var puts []store.KeyValue
	count := 0
	flush := func() error {
		if len(puts) == 0 {
			return nil
		}
		if err := kv.BatchWrite(ctx, puts, nil); err != nil {
			return err
		}
		count += len(puts)
		puts = puts[:0]
		return nil
	}

	for scanner.Scan() {
		var rec record
		if err := jsonutil.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return count, fmt.Errorf("decoding snapshot record: %w", err)
		}
		key, err := decode(rec.K)
		if err != nil {
			return count, fmt.Errorf("decoding snapshot key: %w", err)
		}
		value, err := decode(rec.V)
		if err != nil {
			return count, fmt.Errorf("decoding snapshot value: %w", err)
		}
		puts = append(puts, store.KeyValue{Key: key, Value: value})
		if len(puts) >= importBatchSize {
			if err := flush(); err != nil {
				return count, fmt.Errorf("replaying snapshot batch: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading snapshot object %s: %w", objectKey, err)
	}
	if err := flush(); err != nil {
		return count, fmt.Errorf("replaying final snapshot batch: %w", err)
	}
	return count, nil
}
