package postprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hlscap/retranscoder/internal/metrics"
	"github.com/rs/zerolog"
)

// WatchConfig controls ffmpeg supervision: a startup grace period before
// stall checks begin, a stall timeout after which a non-advancing process
// is killed, and the polling tick.
type WatchConfig struct {
	StartupGrace time.Duration
	StallTimeout time.Duration
	Tick         time.Duration
}

// DefaultWatchConfig matches one muxer invocation per media segment: short
// inputs, so both the grace period and stall timeout are tighter than a
// full VOD remux would use.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		StartupGrace: 3 * time.Second,
		StallTimeout: 20 * time.Second,
		Tick:         1 * time.Second,
	}
}

// Muxer shells out to an ffmpeg-compatible binary to hard-burn or mux
// subtitle tracks into a segment, with progress-pipe stall detection.
type Muxer struct {
	BinaryPath string
	Watch      WatchConfig
	Logger     zerolog.Logger
}

// NewMuxer returns a Muxer using the default watchdog configuration.
func NewMuxer(binaryPath string, logger zerolog.Logger) *Muxer {
	return &Muxer{BinaryPath: binaryPath, Watch: DefaultWatchConfig(), Logger: logger}
}

// Run executes the muxer binary with the given arguments, prepending
// "-nostdin -progress pipe:1" for watchdog supervision, and labels metrics
// with mode for observability.
func (m *Muxer) Run(ctx context.Context, mode string, args []string) error {
	fullArgs := append([]string{"-nostdin", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, m.BinaryPath, fullArgs...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("postprocess: stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("postprocess: start muxer: %w", err)
	}

	progressCh := make(chan progress, 64)
	go func() {
		defer close(progressCh)
		parseProgress(stdout, progressCh)
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	err = m.watch(ctx, mode, done, progressCh, cmd.Process)
	if err != nil {
		metrics.MuxerExitTotal.WithLabelValues(mode, exitReason(err)).Inc()
		return fmt.Errorf("postprocess: muxer (%s): %w: %s", mode, err, strings.TrimSpace(stderrBuf.String()))
	}
	metrics.MuxerExitTotal.WithLabelValues(mode, "ok").Inc()
	return nil
}

func exitReason(err error) string {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return "cancelled"
	}
	if err.Error() == "muxer stalled" {
		return "stall"
	}
	return "error"
}

type progress struct {
	outTimeUs int64
	totalSize int64
}

func (p progress) hasAdvanced(prev progress) bool {
	return p.outTimeUs > prev.outTimeUs || p.totalSize > prev.totalSize
}

func (m *Muxer) watch(ctx context.Context, mode string, done <-chan error, progressCh <-chan progress, proc *os.Process) error {
	start := time.Now()
	lastProgressAt := start
	var last progress

	ticker := time.NewTicker(m.Watch.Tick)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err

		case <-ctx.Done():
			if proc != nil {
				_ = proc.Kill()
			}
			return ctx.Err()

		case p, ok := <-progressCh:
			if !ok {
				continue
			}
			if p.hasAdvanced(last) {
				last = p
				lastProgressAt = time.Now()
			}

		case <-ticker.C:
			if time.Since(start) < m.Watch.StartupGrace {
				continue
			}
			if time.Since(lastProgressAt) > m.Watch.StallTimeout {
				metrics.MuxerStallTotal.WithLabelValues(mode).Inc()
				m.Logger.Error().
					Str("mode", mode).
					Dur("since_progress", time.Since(lastProgressAt)).
					Int64("last_out_time_us", last.outTimeUs).
					Msg("postprocess: muxer stalled, killing process")
				if proc != nil {
					_ = proc.Kill()
				}
				return fmt.Errorf("muxer stalled")
			}
		}
	}
}

func parseProgress(r io.Reader, ch chan<- progress) {
	scanner := bufio.NewScanner(r)
	var current progress
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch key {
		case "out_time_us":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.outTimeUs = v
			}
		case "total_size":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.totalSize = v
			}
		case "progress":
			ch <- current
		}
	}
}
