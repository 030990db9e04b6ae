package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// Request is a command frame sent to the engine.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response is the engine's reply to a Request with the same ID.
type Response struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CommandError is a failure reported by the engine for a command.
// Its message is the engine's payload unchanged.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// Client talks to an external playback engine over a WebSocket.
// Replies are matched to requests by ID, so calls may be issued concurrently.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	idSeq   atomic.Uint64

	timeout   time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the engine at url (ws:// or wss://). timeout bounds each
// command; zero means commands wait until ctx is done.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine at %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *Response),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the connection. Calls in flight fail with ErrNotConnected.
func (c *Client) Close() error {
	c.shutdown()
	return c.conn.Close()
}

// Done is closed when the connection to the engine is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("🔌 Engine connection lost: %v", err)
			}
			return
		}
		c.mu.Lock()
		ch := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- &resp
		}
	}
}

func (c *Client) call(ctx context.Context, command string, args any, out any) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{
		ID:      strconv.FormatUint(c.idSeq.Add(1), 10),
		Command: command,
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode %s args: %w", command, err)
		}
		req.Args = raw
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return fmt.Errorf("failed to send %s: %w", command, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return &CommandError{Command: command, Message: resp.Error}
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("failed to decode %s reply: %w", command, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(req.ID)
		return ctx.Err()
	case <-c.done:
		c.forget(req.ID)
		return ErrNotConnected
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// NewProject implements Engine.
func (c *Client) NewProject(ctx context.Context, name string) (*show.Project, error) {
	var p show.Project
	if err := c.call(ctx, CmdNewProject, nameArgs{Name: name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProject implements Engine.
func (c *Client) LoadProject(ctx context.Context, path string) (*show.Project, error) {
	var p show.Project
	if err := c.call(ctx, CmdLoadProject, pathArgs{Path: path}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProject implements Engine.
func (c *Client) SaveProject(ctx context.Context, path string) error {
	return c.call(ctx, CmdSaveProject, pathArgs{Path: path}, nil)
}

// UpdateProject implements Engine.
func (c *Client) UpdateProject(ctx context.Context, project *show.Project) error {
	return c.call(ctx, CmdUpdateProject, projectArgs{Project: project}, nil)
}

// LoadCue implements Engine.
func (c *Client) LoadCue(ctx context.Context, index int) error {
	return c.call(ctx, CmdLoadCue, cueArgs{CueIndex: index}, nil)
}

// Play implements Engine.
func (c *Client) Play(ctx context.Context) error {
	return c.call(ctx, CmdPlay, nil, nil)
}

// Pause implements Engine.
func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, CmdPause, nil, nil)
}

// Stop implements Engine.
func (c *Client) Stop(ctx context.Context) error {
	return c.call(ctx, CmdStop, nil, nil)
}

// Seek implements Engine.
func (c *Client) Seek(ctx context.Context, position float64) error {
	return c.call(ctx, CmdSeek, seekArgs{Position: position}, nil)
}

// GetPlayerState implements Engine.
func (c *Client) GetPlayerState(ctx context.Context) (*show.PlayerState, error) {
	var st show.PlayerState
	if err := c.call(ctx, CmdGetPlayerState, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetMasterBrightness implements Engine.
func (c *Client) SetMasterBrightness(ctx context.Context, value float64) error {
	return c.call(ctx, CmdSetMasterBrightness, valueArgs{Value: value}, nil)
}

// SetMasterVolume implements Engine.
func (c *Client) SetMasterVolume(ctx context.Context, value float64) error {
	return c.call(ctx, CmdSetMasterVolume, valueArgs{Value: value}, nil)
}

// SetOutputBrightness implements Engine. A linked value is sent as null.
func (c *Client) SetOutputBrightness(ctx context.Context, outputID string, value show.Brightness) error {
	return c.call(ctx, CmdSetOutputBrightness, outputBrightnessArgs{OutputID: outputID, Value: value.Ptr()}, nil)
}

// GetMonitors implements Engine.
func (c *Client) GetMonitors(ctx context.Context) ([]show.MonitorInfo, error) {
	var monitors []show.MonitorInfo
	if err := c.call(ctx, CmdGetMonitors, nil, &monitors); err != nil {
		return nil, err
	}
	return monitors, nil
}

// OpenOutputWindow implements Engine.
func (c *Client) OpenOutputWindow(ctx context.Context, config show.OutputTarget, monitor *show.MonitorInfo) error {
	return c.call(ctx, CmdOpenOutputWindow, openOutputArgs{Config: config, Monitor: monitor}, nil)
}

// CloseOutputWindow implements Engine.
func (c *Client) CloseOutputWindow(ctx context.Context, id string) error {
	return c.call(ctx, CmdCloseOutputWindow, idArgs{ID: id}, nil)
}

// CloseAllOutputs implements Engine.
func (c *Client) CloseAllOutputs(ctx context.Context) error {
	return c.call(ctx, CmdCloseAllOutputs, nil, nil)
}
