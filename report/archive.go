package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/flaurencin/partrecipe/utility"
)

// ArchiveReport marshals full to YAML and writes a zstd-compressed copy at
// destPath, grounded on media/file.go's CleanupAndCompress zstd.NewWriter
// pipeline.
func ArchiveReport(fs afero.Fs, full Full, destPath string) error {
	payload, err := yaml.Marshal(full)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	out, err := fs.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer utility.WrappedClose(out)

	compressor, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("opening zstd writer: %w", err)
	}
	defer utility.WrappedClose(compressor)

	if _, err := io.Copy(compressor, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("compressing report: %w", err)
	}
	return nil
}
