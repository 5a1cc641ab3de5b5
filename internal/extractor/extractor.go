// Package extractor invokes the external media-download tool (yt-dlp or
// compatible) as a subprocess and captures its output for diagnostics.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// waitDelay bounds how long we wait for the tool to exit after SIGTERM.
const waitDelay = 10 * time.Second

// RunError reports a tool invocation that exited non-zero. Output carries
// the combined stdout/stderr of the failed run.
type RunError struct {
	ExitCode int
	Output   string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("extractor: tool exited with code %d, output: %s", e.ExitCode, e.Output)
}

// Tool is a configured media-download binary.
type Tool struct {
	Binary  string // path to the tool binary
	Proxy   string // SOCKS proxy URL for video downloads
	Cookies string // cookie jar path for video downloads
}

// NewTool creates a Tool.
func NewTool(binary, proxy, cookies string) (*Tool, error) {
	if binary == "" {
		return nil, fmt.Errorf("extractor: binary path is required")
	}
	return &Tool{Binary: binary, Proxy: proxy, Cookies: cookies}, nil
}

// ExtractAudio downloads the URL's audio track as mp3 into the output-path
// template. The https_proxy override is cleared for this call; audio
// extraction goes direct.
func (t *Tool) ExtractAudio(ctx context.Context, url, outTemplate string) error {
	return t.run(ctx, audioArgs(url, outTemplate), []string{"https_proxy="})
}

// DownloadVideo downloads the URL into outPath through the configured SOCKS
// proxy, using the configured cookie jar.
func (t *Tool) DownloadVideo(ctx context.Context, url, outPath string) error {
	return t.run(ctx, videoArgs(url, outPath, t.Proxy, t.Cookies), nil)
}

func audioArgs(url, outTemplate string) []string {
	return []string{"-x", "--audio-format", "mp3", "-o", outTemplate, url}
}

func videoArgs(url, outPath, proxy, cookies string) []string {
	return []string{"-o", outPath, "--proxy", proxy, "--cookies", cookies, url}
}

// run executes one tool invocation, capturing combined output. Extra env
// entries are appended to the inherited environment.
func (t *Tool) run(ctx context.Context, args, extraEnv []string) error {
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &RunError{ExitCode: exitErr.ExitCode(), Output: out.String()}
	}
	if err != nil {
		return fmt.Errorf("extractor: run %s: %w", t.Binary, err)
	}
	return nil
}
