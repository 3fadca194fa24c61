package proc

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// ConfirmKind names the action waiting on a yes/no answer.
type ConfirmKind int

const (
	ConfirmLargeDownload ConfirmKind = iota
	ConfirmReboot
	ConfirmDeleteFiles
)

func (k ConfirmKind) String() string {
	switch k {
	case ConfirmLargeDownload:
		return "large-download"
	case ConfirmReboot:
		return "reboot"
	case ConfirmDeleteFiles:
		return "delete-files"
	}
	return "unknown"
}

// Timeout is how long the requester has to answer.
func (k ConfirmKind) Timeout() time.Duration {
	if k == ConfirmDeleteFiles {
		return 10 * time.Second
	}
	return 15 * time.Second
}

// PendingConfirmation is one open question. Payload carries whatever the
// action needs once accepted.
type PendingConfirmation struct {
	ID        string
	Kind      ConfirmKind
	Requester snowflake.ID
	Deadline  time.Time
	Payload   any

	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Confirmations is the registry of open questions. Answers are checked
// against the deadline; nothing blocks waiting for them.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]*PendingConfirmation
	now     func() time.Time
}

func NewConfirmations() *Confirmations {
	return &Confirmations{
		pending: make(map[string]*PendingConfirmation),
		now:     time.Now,
	}
}

// Request opens a question. A zero timeout uses the kind's default.
func (c *Confirmations) Request(kind ConfirmKind, requester snowflake.ID, timeout time.Duration, payload any) PendingConfirmation {
	if timeout <= 0 {
		timeout = kind.Timeout()
	}
	p := &PendingConfirmation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Requester: requester,
		Deadline:  c.now().Add(timeout),
		Payload:   payload,
	}

	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
	return *p
}

// Attach records the prompt message so expiry can disable its buttons.
func (c *Confirmations) Attach(id string, channelID, messageID snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[id]; ok {
		p.ChannelID = channelID
		p.MessageID = messageID
	}
}

// Confirm claims a question for an answer. Answers from anyone but the
// requester are refused and leave the question open. Late answers drop the
// question and return ErrConfirmationTimeout.
func (c *Confirmations) Confirm(id string, user snowflake.ID) (PendingConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return PendingConfirmation{}, ErrUnknownConfirmation
	}
	if p.Requester != user {
		return *p, ErrNotRequester
	}
	delete(c.pending, id)
	if c.now().After(p.Deadline) {
		return *p, ErrConfirmationTimeout
	}
	return *p, nil
}

// Expire drops and returns every question whose deadline has passed.
func (c *Confirmations) Expire() []PendingConfirmation {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []PendingConfirmation
	for id, p := range c.pending {
		if now.After(p.Deadline) {
			out = append(out, *p)
			delete(c.pending, id)
		}
	}
	return out
}

// Len returns the number of open questions.
func (c *Confirmations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
