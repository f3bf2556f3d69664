package summary

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrNoResponse is returned when the channel shuts down while a request
	// is in flight.
	ErrNoResponse = errors.New("summarization channel closed before responding")
	// ErrChannelClosed is returned by Send on a channel that was already closed.
	ErrChannelClosed = errors.New("summarization channel closed")
)

// Options tune one summarization request. Zero values mean "use the
// summarizer's default".
type Options struct {
	UserNotes      string  `json:"userNotes,omitempty"`
	ChunkSize      int     `json:"chunkSize,omitempty"`
	ChunkOverlap   int     `json:"chunkOverlap,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
	MaxLength      int     `json:"maxLength,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ModelName      string  `json:"modelName,omitempty"`
	TargetLanguage string  `json:"targetLanguage,omitempty"`
	SystemPrompt   string  `json:"systemPrompt,omitempty"`
}

// Request asks the channel to summarize Text.
type Request struct {
	Text    string  `json:"text"`
	APIKey  string  `json:"apiKey"`
	Options Options `json:"options"`
}

// Response carries either a summary or an error message.
type Response struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler does the work behind a channel.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Channel is an asynchronous request/response endpoint served by its own
// goroutine. Closing it cancels every request still being handled.
type Channel struct {
	handler Handler
	calls   chan call

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newChannel(h Handler) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		handler: h,
		calls:   make(chan call),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.serve()
	return c
}

func (c *Channel) serve() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case cl := <-c.calls:
			c.wg.Add(1)
			go c.handle(cl)
		}
	}
}

func (c *Channel) handle(cl call) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(cl.ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	resp := c.handler.Handle(ctx, cl.req)
	if c.ctx.Err() != nil {
		// The caller sees ErrNoResponse; a reply produced under a closed
		// channel is the handler reacting to cancellation.
		return
	}
	// reply is buffered, so this never blocks after the caller gave up.
	cl.reply <- resp
}

// Send delivers req and waits for the response. It returns ctx's error when
// ctx ends first and ErrNoResponse when the channel is closed mid-request.
func (c *Channel) Send(ctx context.Context, req Request) (Response, error) {
	cl := call{ctx: ctx, req: req, reply: make(chan Response, 1)}

	select {
	case <-c.ctx.Done():
		return Response{}, ErrChannelClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case c.calls <- cl:
	}

	select {
	case resp := <-cl.reply:
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.ctx.Done():
		return Response{}, ErrNoResponse
	}
}

// Close cancels in-flight requests and waits for the channel's goroutines.
func (c *Channel) Close() {
	c.cancel()
	c.wg.Wait()
}

// ChannelManager owns the single live channel. Ensure creates it on demand;
// Reset tears it down so the next Ensure builds a fresh one.
type ChannelManager struct {
	handler Handler
	logger  *slog.Logger
	onReset func()

	mu      sync.Mutex
	current *Channel
	created int
	closed  bool
}

// NewChannelManager creates a manager whose channels are served by h.
// onReset, if set, is called after every teardown.
func NewChannelManager(h Handler, onReset func()) *ChannelManager {
	return &ChannelManager{handler: h, logger: slog.Default(), onReset: onReset}
}

// Ensure returns the live channel, creating one if none exists.
func (m *ChannelManager) Ensure() *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.current = newChannel(m.handler)
		m.created++
		m.logger.Debug("summarization channel created", "generation", m.created)
	}
	return m.current
}

// Ready reports whether a channel is currently live.
func (m *ChannelManager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Generations returns how many channels have been created so far.
func (m *ChannelManager) Generations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// maxRedeliveries bounds how often Send moves a request to a fresh channel
// after a concurrent Reset closed the one it picked.
const maxRedeliveries = 2

// Send forwards req to the live channel, creating it when absent. A request
// that reached a channel already torn down by Reset was never delivered, so
// it is sent again on the replacement.
func (m *ChannelManager) Send(ctx context.Context, req Request) (Response, error) {
	return m.sendFrom(ctx, m.Ensure(), req)
}

func (m *ChannelManager) sendFrom(ctx context.Context, ch *Channel, req Request) (Response, error) {
	for i := 0; ; i++ {
		resp, err := ch.Send(ctx, req)
		if !errors.Is(err, ErrChannelClosed) || i == maxRedeliveries || m.isClosed() {
			return resp, err
		}
		m.logger.Debug("channel reset before delivery, resending")
		ch = m.Ensure()
	}
}

func (m *ChannelManager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset destroys the live channel, cancelling its in-flight work.
func (m *ChannelManager) Reset() {
	m.mu.Lock()
	ch := m.current
	m.current = nil
	m.mu.Unlock()

	if ch == nil {
		return
	}
	ch.Close()
	m.logger.Info("summarization channel reset")
	if m.onReset != nil {
		m.onReset()
	}
}

// Close shuts the live channel down for good.
func (m *ChannelManager) Close() {
	m.mu.Lock()
	ch := m.current
	m.current = nil
	m.closed = true
	m.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}
