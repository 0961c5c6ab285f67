package assemble

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// Sink consumes a stream of mono float32 samples. The assembler writes clip
// by clip so a multi-hour book never sits in memory at once.
type Sink interface {
	Write(samples []float32) error
	Close() error
}

type wavSink struct {
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

// NewWAVSink writes 16-bit mono PCM to path.
func NewWAVSink(path string, sampleRate int) (Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav output: %w", err)
	}
	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	return &wavSink{
		file: file,
		enc:  enc,
		buf:  &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate}},
	}, nil
}

func (s *wavSink) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s.buf.Data[i] = int(v * math.MaxInt16)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

func (s *wavSink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return s.file.Close()
}

type muxSink struct {
	command string
	cmd     *exec.Cmd
	stdin   *os.File
	stderr  *bytes.Buffer
	raw     []byte
}

// NewMuxSink starts the external muxer and streams f32le samples to its
// stdin. The muxer encodes incrementally; Close waits for it to finish the
// container.
func NewMuxSink(ctx context.Context, command, outputPath string, sampleRate int, meta Metadata) (Sink, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse mux command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("mux command is empty")
	}

	args = append(args,
		"-y",
		"-thread_queue_size", "32768",
		"-f", "f32le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
		"-c:a", "aac",
		"-q:a", "2",
		"-movflags", "+faststart+use_metadata_tags",
	)
	args = append(args, metadataOptions(meta, outputPath)...)
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// An *os.File pipe lets cancellation unblock a writer stuck on
	// encoder backpressure.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("mux pipe: %w", err)
	}
	cmd.Stdin = pr
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start muxer: %w", err)
	}
	pr.Close()

	return &muxSink{command: command, cmd: cmd, stdin: pw, stderr: &stderr}, nil
}

func (s *muxSink) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	need := len(samples) * 4
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	s.raw = s.raw[:need]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(s.raw[i*4:], math.Float32bits(v))
	}
	if _, err := s.stdin.Write(s.raw); err != nil {
		return &ContainerMuxError{Command: s.command, Stderr: s.stderr.String(), Err: err}
	}
	return nil
}

func (s *muxSink) Close() error {
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return &ContainerMuxError{Command: s.command, Stderr: s.stderr.String(), Err: err}
	}
	return nil
}
