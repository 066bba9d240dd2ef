package report

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/flaurencin/partrecipe/utility"
)

// NewGCSClient builds a traced storage client, grounded on cmd/setup/setup.go's
// otelgrpc-wrapped dial options.
func NewGCSClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx,
		option.WithGRPCDialOption(grpc.WithStreamInterceptor(otelgrpc.StreamClientInterceptor())),
		option.WithGRPCDialOption(grpc.WithUnaryInterceptor(otelgrpc.UnaryClientInterceptor())))
}

// Archiver ships an archived report file to a GCS bucket.
type Archiver struct {
	Client *storage.Client
	Bucket string
}

// NewArchiver wraps an existing storage client for a specific bucket.
func NewArchiver(client *storage.Client, bucket string) *Archiver {
	return &Archiver{Client: client, Bucket: bucket}
}

// Upload copies localPath from fs to objectName in the archiver's bucket.
func (a *Archiver) Upload(ctx context.Context, fs afero.Fs, localPath, objectName string) error {
	file, err := fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer utility.WrappedClose(file)

	writer := a.Client.Bucket(a.Bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return fmt.Errorf("uploading %s to gs://%s/%s: %w", localPath, a.Bucket, objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalising upload of %s: %w", objectName, err)
	}
	return nil
}
