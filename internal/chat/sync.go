// Package chat keeps a conversation view in sync with the backend by
// polling on a fixed cadence while the conversation is open. Sends are
// shown optimistically and reconciled against server results on the next
// poll.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nhassan/fieldops/internal/models"
)

// DefaultPollInterval matches the cadence the mobile client used.
const DefaultPollInterval = 5 * time.Second

// pendingMatchWindow bounds how far apart an optimistic entry and its
// server confirmation may be timestamped and still count as the same
// message.
const pendingMatchWindow = 30 * time.Second

// Role classifies a message relative to the logged-in user.
type Role string

const (
	RoleSelf  Role = "self"
	RoleOther Role = "other"
)

// State is the synchronizer's lifecycle state.
type State string

const (
	StateIdle      State = "idle"      // no open conversation
	StatePolling   State = "polling"   // recurring fetches scheduled
	StateSuspended State = "suspended" // manual refresh in flight
)

// ErrNoConversation is returned by operations that need an open
// conversation.
var ErrNoConversation = fmt.Errorf("chat: no open conversation")

// Message is one displayed chat line. Pending entries are local
// optimistic sends awaiting server confirmation.
type Message struct {
	ID        string
	Text      string
	SenderID  string
	Role      Role
	CreatedAt time.Time
	Pending   bool
}

// MessageService abstracts the backend chat collection. The api package's
// ChatService implements it.
type MessageService interface {
	Messages(ctx context.Context, requestID int) ([]models.ChatMessage, error)
	Send(ctx context.Context, requestID int, text string) (*models.ChatMessage, error)
}

// Synchronizer drives one conversation view. Open starts the polling
// loop, Close stops it; an in-flight fetch is allowed to finish but its
// result is discarded once closed.
type Synchronizer struct {
	service  MessageService
	selfID   string
	interval time.Duration
	onUpdate func([]Message)

	mu        sync.Mutex
	state     State
	requestID int
	gen       int // bumped on Open/Close; stale fetch results are dropped
	stop      chan struct{}
	messages  []Message
}

// SynchronizerOpts holds parameters for creating a Synchronizer.
type SynchronizerOpts struct {
	Service      MessageService
	SelfID       string        // current user id, for sender-role derivation
	PollInterval time.Duration // defaults to DefaultPollInterval
	OnUpdate     func([]Message) // optional; called after each change
}

// NewSynchronizer creates a Synchronizer in the Idle state.
func NewSynchronizer(opts SynchronizerOpts) (*Synchronizer, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("chat: message service is required")
	}
	if opts.SelfID == "" {
		return nil, fmt.Errorf("chat: self user id is required")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Synchronizer{
		service:  opts.Service,
		selfID:   opts.SelfID,
		interval: interval,
		onUpdate: opts.OnUpdate,
		state:    StateIdle,
	}, nil
}

// Open starts polling the conversation for requestID: one immediate
// fetch, then one per interval. Opening while another conversation is
// open closes it first.
func (s *Synchronizer) Open(requestID int) {
	s.mu.Lock()
	if s.state != StateIdle {
		close(s.stop)
	}
	s.gen++
	s.state = StatePolling
	s.requestID = requestID
	s.messages = nil
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.loop(stop)
}

// Close stops the polling schedule. Any fetch already in flight drains
// on its own and its result is discarded.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	close(s.stop)
	s.gen++
	s.state = StateIdle
}

// loop runs the recurring fetches until the stop channel closes.
// Failures are logged and retried on the next tick; the loop never
// tears itself down.
func (s *Synchronizer) loop(stop chan struct{}) {
	ctx := context.Background()
	if err := s.Poll(ctx); err != nil {
		log.Printf("chat: poll: %v", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				log.Printf("chat: poll: %v", err)
			}
		}
	}
}

// Poll performs one fetch-and-reconcile cycle for the open conversation.
// Ticks that land during a manual refresh are skipped; the refresh
// already has a fetch in flight.
func (s *Synchronizer) Poll(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if s.state == StateSuspended {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	requestID := s.requestID
	s.mu.Unlock()

	server, err := s.service.Messages(ctx, requestID)
	if err != nil {
		return fmt.Errorf("chat: fetch messages for request %d: %w", requestID, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// Conversation closed or reopened while we were fetching.
		s.mu.Unlock()
		return nil
	}
	s.reconcileLocked(server)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// RefreshNow runs one fetch outside the regular cadence. The schedule's
// phase is not reset; the next tick fires when it would have anyway.
func (s *Synchronizer) RefreshNow(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return ErrNoConversation
	}
	s.state = StateSuspended
	gen := s.gen
	requestID := s.requestID
	s.mu.Unlock()

	server, err := s.service.Messages(ctx, requestID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateSuspended {
		s.state = StatePolling
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("chat: manual refresh for request %d: %w", requestID, err)
	}
	s.reconcileLocked(server)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// SendMessage posts text to the open conversation and appends an
// optimistic local entry so the sender sees it before the next poll.
func (s *Synchronizer) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return ErrNoConversation
	}
	gen := s.gen
	requestID := s.requestID
	s.mu.Unlock()

	if _, err := s.service.Send(ctx, requestID, text); err != nil {
		return fmt.Errorf("chat: send to request %d: %w", requestID, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.messages = append(s.messages, Message{
		ID:        "pending-" + uuid.NewString(),
		Text:      text,
		SenderID:  s.selfID,
		Role:      RoleSelf,
		CreatedAt: time.Now(),
		Pending:   true,
	})
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Messages returns a copy of the current display state, oldest first.
func (s *Synchronizer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// reconcileLocked replaces the display state with the server's list,
// keeping optimistic entries the server has not confirmed yet. A pending
// entry is confirmed by a server message from the same sender with the
// same text and a close-enough timestamp; confirmed entries drop their
// pending twin so nothing shows twice.
func (s *Synchronizer) reconcileLocked(server []models.ChatMessage) {
	confirmed := make([]Message, 0, len(server))
	for _, m := range server {
		role := RoleOther
		if m.Sender.ID == s.selfID {
			role = RoleSelf
		}
		confirmed = append(confirmed, Message{
			ID:        fmt.Sprintf("%d", m.ID),
			Text:      m.Message,
			SenderID:  m.Sender.ID,
			Role:      role,
			CreatedAt: m.DateCreated,
		})
	}
	// Server already orders by creation time; keep its arrival order for
	// equal timestamps.
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].CreatedAt.Before(confirmed[j].CreatedAt)
	})

	for _, local := range s.messages {
		if !local.Pending {
			continue
		}
		if matchesConfirmed(local, confirmed) {
			continue
		}
		confirmed = append(confirmed, local)
	}
	// Surviving pending entries slot back into timestamp order rather
	// than trailing the list.
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].CreatedAt.Before(confirmed[j].CreatedAt)
	})
	s.messages = confirmed
}

func matchesConfirmed(pending Message, confirmed []Message) bool {
	for _, c := range confirmed {
		if c.Role != RoleSelf || c.Text != pending.Text {
			continue
		}
		d := c.CreatedAt.Sub(pending.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= pendingMatchWindow {
			return true
		}
	}
	return false
}

func (s *Synchronizer) snapshotLocked() []Message {
	cp := make([]Message, len(s.messages))
	copy(cp, s.messages)
	return cp
}

func (s *Synchronizer) notify(snapshot []Message) {
	if s.onUpdate != nil {
		s.onUpdate(snapshot)
	}
}
