// Package raidtool adapts mdadm(8) behind a narrow Go surface.
package raidtool

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/flaurencin/partrecipe/subprocess"
)

// DeviceMissingError reports that mdadm exited 0 but the resulting device
// node never appeared.
type DeviceMissingError struct{ MdName string }

func (e *DeviceMissingError) Error() string {
	return fmt.Sprintf("mdadm reported success but %s does not exist", e.MdName)
}

// Tool wraps a subprocess.Runner with the mdadm argv this module needs.
type Tool struct {
	Runner *subprocess.Runner
}

func NewTool(runner *subprocess.Runner) *Tool {
	return &Tool{Runner: runner}
}

// Exists reports whether mdName already names a device node.
func (t *Tool) Exists(mdName string) bool {
	_, err := os.Stat(mdName)
	return err == nil
}

// CreateRequest is the fully-resolved argv for one `mdadm --create`
// invocation.
type CreateRequest struct {
	MdName          string
	Level           int
	DevicePaths     []string
	SparePaths      []string
	MetadataVersion string
}

// needsContinuePrompt reports whether mdadm will ask "Continue creating
// array?" for this metadata version and needs "y\n" piped to stdin.
func needsContinuePrompt(metadataVersion string) bool {
	switch metadataVersion {
	case "1.0", "1", "1.2":
		return true
	default:
		return false
	}
}

// Create assembles and executes `mdadm --create ...`, then verifies the
// resulting device node exists.
func (t *Tool) Create(ctx context.Context, req CreateRequest) error {
	args := []string{
		"--create", req.MdName,
		"--force",
		"--level=" + strconv.Itoa(req.Level),
		"--raid-devices=" + strconv.Itoa(len(req.DevicePaths)),
	}
	if len(req.SparePaths) > 0 {
		args = append(args, "--spare-devices="+strconv.Itoa(len(req.SparePaths)))
	}
	if req.MetadataVersion != "" {
		args = append(args, "--metadata="+req.MetadataVersion)
	}
	args = append(args, req.DevicePaths...)
	args = append(args, req.SparePaths...)

	var stdin []byte
	if needsContinuePrompt(req.MetadataVersion) {
		stdin = []byte("y\n")
	}

	if _, err := t.Runner.RunWithStdin(ctx, stdin, "mdadm", args...); err != nil {
		return fmt.Errorf("mdadm --create %s: %w", req.MdName, err)
	}

	if !t.Exists(req.MdName) {
		return &DeviceMissingError{MdName: req.MdName}
	}

	return nil
}
