package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/narravox/narravox/internal/frame"
)

type execDecoder struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	L1 []int `json:"l1"`
	L2 []int `json:"l2"`
	L3 []int `json:"l3"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"` // f32le mono
	Error     string `json:"error,omitempty"`
}

// NewExecDecoder runs the configured codec command once per decode, feeding
// codes as JSON on stdin and reading back base64 f32le samples.
func NewExecDecoder(command string) (Decoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse codec command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("codec command empty")
	}
	return &execDecoder{cmd: args}, nil
}

func (d *execDecoder) Decode(ctx context.Context, codes frame.Codes) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	input, err := json.Marshal(execRequest{L1: codes.L1, L2: codes.L2, L3: codes.L3})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.cmd[0], d.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codec command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode codec response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("codec: %s", resp.Error)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode codec pcm: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("codec pcm payload not aligned")
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

func (d *execDecoder) Close() error { return nil }
