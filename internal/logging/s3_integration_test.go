package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests for the error archive using MinIO.
//
// Start MinIO:
//
//   docker run -d --name minio-test -p 9000:9000 \
//     -e MINIO_ROOT_USER=minioadmin -e MINIO_ROOT_PASSWORD=minioadmin \
//     minio/minio server /data
//
// Then run:
//   MINIO_ENDPOINT=http://localhost:9000 go test -v -run TestS3Integration ./internal/logging

const testBucketName = "test-devclip-errors"

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// minioClient returns a client for MinIO or skips the test
func minioClient(t *testing.T) *s3.Client {
	t.Helper()
	if os.Getenv("MINIO_ENDPOINT") == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			getEnvOr("MINIO_ACCESS_KEY", "minioadmin"),
			getEnvOr("MINIO_SECRET_KEY", "minioadmin"),
			"",
		)),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(os.Getenv("MINIO_ENDPOINT"))
		o.UsePathStyle = true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(testBucketName)}); err != nil {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(testBucketName)})
		require.NoError(t, err)
	}
	return client
}

func listObjects(t *testing.T, client *s3.Client, prefix string) []string {
	t.Helper()
	out, err := client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
		Bucket: aws.String(testBucketName),
		Prefix: aws.String(prefix),
	})
	require.NoError(t, err)

	var keys []string
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys
}

func TestS3Integration_WriteBatch(t *testing.T) {
	client := minioClient(t)
	ctx := context.Background()

	prefix := "write-batch-" + time.Now().Format("150405.000") + "/"
	writer := NewS3WriterWithClient(client, testBucketName, prefix, "test-pod")

	key, err := writer.WriteBatch(ctx, []*ErrorEvent{
		{Timestamp: time.Now(), Component: "pipeline", Message: "first"},
		{Timestamp: time.Now(), Component: "pipeline", Message: "second"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, prefix))

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(testBucketName), Key: aws.String(key)})
	require.NoError(t, err)
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	var ev ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "first", ev.Message)
	assert.Equal(t, "application/x-ndjson", aws.ToString(obj.ContentType))
}

func TestS3Integration_ArchiveSink(t *testing.T) {
	client := minioClient(t)

	prefix := "sink-" + time.Now().Format("150405.000") + "/"
	writer := NewS3WriterWithClient(client, testBucketName, prefix, "test-pod")
	sink := NewArchiveSink(writer, ArchiveConfig{BufferSize: 100, FlushSize: 5, FlushInterval: time.Hour})

	for i := 0; i < 12; i++ {
		require.NoError(t, sink.Enqueue(&ErrorEvent{Timestamp: time.Now(), Component: "test", Message: "event"}))
	}
	require.NoError(t, sink.Shutdown(context.Background()))

	// 5 + 5 on size, 2 on shutdown
	assert.Len(t, listObjects(t, client, prefix), 3)
}
