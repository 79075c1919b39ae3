package audio

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Source opens a media URL as raw 48kHz stereo s16le PCM.
type Source interface {
	Open(ctx context.Context, mediaURL string) (io.ReadCloser, error)
}

// FFmpeg decodes media with the ffmpeg binary.
type FFmpeg struct {
	Path string // Binary path, "ffmpeg" when empty
}

var _ Source = (*FFmpeg)(nil)

// Open starts ffmpeg for mediaURL. Closing the reader stops the process.
func (f *FFmpeg) Open(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path, ffmpegArgs(mediaURL)...)
	cmd.Stderr = logWriter{}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}
	zlog.Debug().Msgf("audio: ffmpeg started (pid %d)", cmd.Process.Pid)
	return &process{ReadCloser: stdout, cmd: cmd}, nil
}

func ffmpegArgs(mediaURL string) []string {
	var args []string
	if strings.HasPrefix(mediaURL, "http://") || strings.HasPrefix(mediaURL, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", mediaURL,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

type process struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

func (p *process) Close() error {
	p.once.Do(func() {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	})
	return nil
}

// logWriter forwards ffmpeg diagnostics to the debug log.
type logWriter struct{}

func (logWriter) Write(b []byte) (int, error) {
	if msg := bytes.TrimSpace(b); len(msg) > 0 {
		zlog.Debug().Msgf("audio: ffmpeg: %s", msg)
	}
	return len(b), nil
}
