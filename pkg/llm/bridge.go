// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"

	"github.com/verdantlabs/verdant/pkg/errors"
)

// BridgeAdapter proxies calls through an external bridge process speaking
// newline-delimited JSON over stdio. Each written request line yields
// exactly one response line. A compact world-state snapshot is pushed to
// the bridge before each call via PushState.
type BridgeAdapter struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
}

// NewBridge starts the bridge process and wires its stdio.
func NewBridge(command string, args ...string) (*BridgeAdapter, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.New(errors.CodeBridgeError, "failed to open bridge stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(errors.CodeBridgeError, "failed to open bridge stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.New(errors.CodeBridgeError, "failed to start bridge process", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &BridgeAdapter{
		cmd:     cmd,
		stdin:   stdin,
		scanner: scanner,
	}, nil
}

// Name implements Adapter.
func (b *BridgeAdapter) Name() string { return "bridge" }

type bridgeRequest struct {
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
	Context     any    `json:"context,omitempty"`
	Interaction any    `json:"interaction,omitempty"`
	State       string `json:"state,omitempty"`
}

// PushState implements StatePusher. The bridge acknowledges with one line.
func (b *BridgeAdapter) PushState(ctx context.Context, state string) error {
	_, err := b.exchange(ctx, bridgeRequest{Type: "state", State: state})
	return err
}

// Call implements Adapter. The wire request carries the user utterance plus
// the backend-specific extra context and interaction descriptor.
func (b *BridgeAdapter) Call(ctx context.Context, req CallRequest) (json.RawMessage, error) {
	wire := bridgeRequest{
		Type:    "chat",
		Message: lastUtterance(req.Messages),
	}
	if req.Extra != nil {
		wire.Context = req.Extra["context"]
		wire.Interaction = req.Extra["interaction"]
	}
	return b.exchange(ctx, wire)
}

func (b *BridgeAdapter) exchange(ctx context.Context, req bridgeRequest) (json.RawMessage, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to marshal bridge request", err)
	}
	line = append(line, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.CodeBridgeError, "bridge call aborted", err)
	}
	if _, err := b.stdin.Write(line); err != nil {
		return nil, errors.New(errors.CodeBridgeError, "failed to write to bridge", err)
	}
	if !b.scanner.Scan() {
		err := b.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return nil, errors.New(errors.CodeBridgeError, "bridge closed its output", err)
	}
	raw := make(json.RawMessage, len(b.scanner.Bytes()))
	copy(raw, b.scanner.Bytes())
	return raw, nil
}

// Parse implements Adapter. The bridge answers {text, tool_calls, raw},
// which the structural parser already understands; everything else
// degrades to literal text.
func (b *BridgeAdapter) Parse(raw json.RawMessage) Reply {
	return Finalize(ParseRaw(raw))
}

// Close terminates the bridge process.
func (b *BridgeAdapter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stdin.Close()
	return b.cmd.Wait()
}

// lastUtterance returns the content of the most recent user or interaction
// message.
func lastUtterance(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser || messages[i].Role == RoleInteraction {
			return messages[i].Content
		}
	}
	return ""
}

var (
	_ Adapter     = (*BridgeAdapter)(nil)
	_ StatePusher = (*BridgeAdapter)(nil)
)
