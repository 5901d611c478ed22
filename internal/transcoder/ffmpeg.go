// Package transcoder normalizes uploaded audio into the fixed mp3
// profile the transcription service accepts: mono, 44.1 kHz, 128 kbps,
// libmp3lame. The encoder itself is an external ffmpeg process.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpeg shells out to ffmpeg with the fixed target profile.
type FFmpeg struct {
	binPath string
	grace   time.Duration
	runner  commandRunner
	stat    func(name string) (os.FileInfo, error)
	log     *logrus.Logger
}

func NewFFmpeg(binPath string, grace time.Duration, log *logrus.Logger) *FFmpeg {
	return &FFmpeg{
		binPath: binPath,
		grace:   grace,
		runner:  &execRunner{},
		stat:    os.Stat,
		log:     log,
	}
}

// Encode converts the file at inputPath into <inputPath>.mp3 and
// returns the derived path. The caller owns both files.
//
// The grace delay between encoder exit and the output stat is a
// workaround carried over from the original deployment, where the
// encoded file was occasionally read before the filesystem had
// finalized it. exec waits for the process to exit and close its
// output, so 0 is a safe setting on any POSIX filesystem.
func (f *FFmpeg) Encode(ctx context.Context, inputPath string) (string, error) {
	outPath := inputPath + ".mp3"
	args := buildArgs(inputPath, outPath)

	res, err := f.runner.Run(ctx, f.binPath, args...)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"input":     inputPath,
			"exit_code": res.ExitCode,
			"stderr":    tail(res.Stderr, 512),
		}).Error("ffmpeg conversion failed")
		return "", fmt.Errorf("ffmpeg: %w", err)
	}

	if f.grace > 0 {
		select {
		case <-time.After(f.grace):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if _, err := f.stat(outPath); err != nil {
		f.log.WithField("output", outPath).Error("ffmpeg reported success but output is missing")
		return "", fmt.Errorf("encoded file missing: %w", err)
	}

	f.log.WithFields(logrus.Fields{
		"input":  inputPath,
		"output": outPath,
	}).Info("audio conversion completed")
	return outPath, nil
}

// buildArgs builds the ffmpeg CLI for the fixed mono/44.1k/128k mp3 target.
func buildArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		"-ac", "1",
		"-ar", "44100",
		"-f", "mp3",
		outPath,
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
