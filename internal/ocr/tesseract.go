// Package ocr decides whether an embedded image carries text and recognizes
// that text with the tesseract engine.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and returns stdout. Stderr is folded into the
// error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Options controls a single recognition pass.
type Options struct {
	Languages string // tesseract -l value, e.g. "rus+eng"
	OEM       int
	PSM       int
	// PreserveInterwordSpaces keeps runs of spaces between words.
	PreserveInterwordSpaces bool
}

// Engine recognizes text in an image file.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, opts Options) (string, error)
}

// Tesseract is an Engine backed by the tesseract command line tool.
type Tesseract struct {
	binary string
	runner CommandRunner
}

// NewTesseract creates a Tesseract engine. An empty binary defaults to
// "tesseract" on PATH; a nil runner defaults to ExecRunner.
func NewTesseract(binary string, runner CommandRunner) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tesseract{binary: binary, runner: runner}
}

// Recognize runs tesseract on imagePath and returns the raw text written to stdout.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string, opts Options) (string, error) {
	out, err := t.runner.Run(ctx, t.binary, tesseractArgs(imagePath, opts)...)
	if err != nil {
		return "", fmt.Errorf("failed to run tesseract: %w", err)
	}
	return string(out), nil
}

func tesseractArgs(imagePath string, opts Options) []string {
	args := []string{imagePath, "stdout"}
	if opts.Languages != "" {
		args = append(args, "-l", opts.Languages)
	}
	args = append(args,
		"--oem", strconv.Itoa(opts.OEM),
		"--psm", strconv.Itoa(opts.PSM),
	)
	if opts.PreserveInterwordSpaces {
		args = append(args, "-c", "preserve_interword_spaces=1")
	}
	return args
}
