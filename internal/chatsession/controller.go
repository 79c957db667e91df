package chatsession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"docchat/internal/logging"
)

var ErrBusy = errors.New("a reply is still pending")

// Asker sends a question to the server, which persists both turns.
type Asker interface {
	Ask(ctx context.Context, documentID, question string) (string, error)
}

// Subscriber streams authoritative transcript snapshots.
type Subscriber interface {
	Subscribe(ctx context.Context, documentID string) (<-chan []Message, error)
}

// Controller applies user actions and server events to one conversation
// through Reduce. It is safe for concurrent use.
type Controller struct {
	documentID string
	asker      Asker
	subscriber Subscriber
	now        func() time.Time

	mu       sync.Mutex
	state    State
	onChange func(State)
}

func NewController(documentID string, asker Asker, subscriber Subscriber) *Controller {
	return &Controller{
		documentID: documentID,
		asker:      asker,
		subscriber: subscriber,
		now:        time.Now,
	}
}

// OnChange registers fn to observe every state change. fn runs with the
// controller's lock released.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) dispatch(e Event) (before, after State) {
	c.mu.Lock()
	before = c.state
	c.state = Reduce(c.state, e)
	after = c.state
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(after)
	}
	return before, after
}

func (c *Controller) SetInput(text string) {
	c.dispatch(InputChanged{Text: text})
}

// Submit shows the question optimistically and blocks until the server
// answers. A failure is rendered inline and also returned.
func (c *Controller) Submit(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}
	before, after := c.dispatch(Submitted{Question: question, At: c.now()})
	if before.Status == StatusAwaitingReply || !after.Pending() {
		return ErrBusy
	}

	answer, err := c.asker.Ask(ctx, c.documentID, question)
	if err != nil {
		logging.FromContext(ctx).Warn("ask failed", "document_id", c.documentID, "error", err)
		c.dispatch(ReplyFailed{Err: err, At: c.now()})
		return err
	}
	c.dispatch(ReplySucceeded{Answer: answer, At: c.now()})
	return nil
}

// Run feeds transcript snapshots into the controller until ctx ends or the
// subscription closes.
func (c *Controller) Run(ctx context.Context) error {
	snapshots, err := c.subscriber.Subscribe(ctx, c.documentID)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msgs, ok := <-snapshots:
			if !ok {
				return nil
			}
			c.dispatch(SnapshotReceived{Messages: msgs})
		}
	}
}
