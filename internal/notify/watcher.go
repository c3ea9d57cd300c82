package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhassan/fieldops/internal/models"
	"github.com/robfig/cron/v3"
)

// RequestSource lists all service requests visible to the watcher's
// credentials. The api package's RequestsService implements it.
type RequestSource interface {
	ListAll(ctx context.Context) ([]models.ServiceRequest, error)
}

// ChatSource fetches the conversation for one request. The api package's
// ChatService implements it.
type ChatSource interface {
	Messages(ctx context.Context, requestID int) ([]models.ChatMessage, error)
}

// Default watcher intervals.
const (
	DefaultPollInterval   = 15 * time.Second
	DefaultDigestInterval = 30 * time.Minute
)

// EventType identifies the kind of event detected by the watcher.
type EventType string

const (
	EventRequestCreated EventType = "request_created"
	EventStatusChange   EventType = "status_change"
	EventChatMessage    EventType = "chat_message"
	EventDigest         EventType = "digest"
)

// DetectedEvent is a raw event detected by the watcher before formatting.
type DetectedEvent struct {
	Type      EventType
	Timestamp time.Time

	// Request events
	RequestID int
	OldStatus string
	NewStatus string
	Service   string
	Unit      string

	// Chat events
	SenderName string
	Text       string

	// Digest events
	Title string
	Body  string
}

// requestSnapshot holds the last-known state of each request for change
// detection.
type requestSnapshot struct {
	Status  string
	Service string
	Unit    string
}

// StatusDigest holds request counts by status for digest comparison.
type StatusDigest struct {
	Pending   int
	Scheduled int
	Done      int
	Rejected  int
}

// Watcher polls the backend for request lifecycle changes and new chat
// messages on active requests. It emits DetectedEvents to a channel for
// formatting and delivery.
type Watcher struct {
	requests       RequestSource
	chat           ChatSource
	selfID         string // messages from this user are not announced
	pollInterval   time.Duration
	digestInterval time.Duration
	digestSchedule cron.Schedule // from DigestCron; overrides digestInterval when set

	mu         sync.Mutex
	snapshot   map[int]requestSnapshot // requestID -> last-known state
	lastChatID map[int]int             // requestID -> highest announced message id
	seeded     bool                    // true after first poll (baseline established)
	lastDigest *StatusDigest           // last emitted digest for comparison
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	Requests       RequestSource
	Chat           ChatSource    // optional; chat events disabled when nil
	SelfID         string        // the watcher account's own user id
	PollInterval   time.Duration // defaults to DefaultPollInterval
	DigestInterval time.Duration // defaults to DefaultDigestInterval
	DigestCron     string        // optional 5-field cron expression
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.Requests == nil {
		return nil, fmt.Errorf("notify: watcher: request source is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	digest := opts.DigestInterval
	if digest <= 0 {
		digest = DefaultDigestInterval
	}
	var schedule cron.Schedule
	if opts.DigestCron != "" {
		var err error
		schedule, err = parseDigestCron(opts.DigestCron)
		if err != nil {
			return nil, fmt.Errorf("notify: watcher: digest cron %q: %w", opts.DigestCron, err)
		}
	}
	return &Watcher{
		requests:       opts.Requests,
		chat:           opts.Chat,
		selfID:         opts.SelfID,
		pollInterval:   poll,
		digestInterval: digest,
		digestSchedule: schedule,
		snapshot:       make(map[int]requestSnapshot),
		lastChatID:     make(map[int]int),
	}, nil
}

// parseDigestCron validates a digest_cron config value: 5-field cron,
// minute through day-of-week, as in "0 9 * * 1-5" for weekday mornings.
func parseDigestCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// Poll runs one detection cycle: checks for new requests, status changes,
// and fresh chat messages on active requests. Returns all detected events.
func (w *Watcher) Poll(ctx context.Context) ([]DetectedEvent, error) {
	reqs, err := w.requests.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: watcher: list requests: %w", err)
	}

	allEvents := w.detectRequestEvents(reqs)

	if w.chat != nil {
		chatEvents, err := w.detectChatEvents(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("notify: watcher: chat events: %w", err)
		}
		allEvents = append(allEvents, chatEvents...)
	}

	return allEvents, nil
}

// Run starts the watcher loop. It polls on the configured interval and
// sends detected events to the returned channel. The channel is closed
// when the context is cancelled. Digests fire on their own schedule.
func (w *Watcher) Run(ctx context.Context) <-chan DetectedEvent {
	ch := make(chan DetectedEvent, 64)
	go func() {
		defer close(ch)
		pollTicker := time.NewTicker(w.pollInterval)
		defer pollTicker.Stop()
		digestTimer := time.NewTimer(w.nextDigestDelay())
		defer digestTimer.Stop()

		emit := func(events []DetectedEvent) {
			for _, e := range events {
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollTicker.C:
				events, err := w.Poll(ctx)
				if err != nil {
					continue
				}
				emit(events)
			case <-digestTimer.C:
				if digest := w.BuildDigest(); digest != nil {
					select {
					case ch <- *digest:
					case <-ctx.Done():
						return
					}
				}
				digestTimer.Reset(w.nextDigestDelay())
			}
		}
	}()
	return ch
}

// nextDigestDelay returns the wait until the next digest: the cron
// schedule's next fire time when configured, the fixed interval
// otherwise.
func (w *Watcher) nextDigestDelay() time.Duration {
	if w.digestSchedule != nil {
		if d := time.Until(w.digestSchedule.Next(time.Now())); d > 0 {
			return d
		}
	}
	return w.digestInterval
}

// detectRequestEvents compares current request states against the
// in-memory snapshot and emits events for any changes. On the first call
// it seeds the snapshot without emitting events (to avoid a burst of
// false positives on startup).
func (w *Watcher) detectRequestEvents(reqs []models.ServiceRequest) []DetectedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []DetectedEvent
	currentIDs := make(map[int]bool, len(reqs))

	for _, r := range reqs {
		currentIDs[r.ID] = true
		cur := requestSnapshot{Status: r.Status, Service: r.Service.Title, Unit: r.Profile.Unit}
		old, exists := w.snapshot[r.ID]
		if !exists {
			w.snapshot[r.ID] = cur
			if w.seeded {
				events = append(events, DetectedEvent{
					Type:      EventRequestCreated,
					Timestamp: time.Now(),
					RequestID: r.ID,
					NewStatus: r.Status,
					Service:   cur.Service,
					Unit:      cur.Unit,
				})
			}
			continue
		}
		if old.Status != r.Status {
			events = append(events, DetectedEvent{
				Type:      EventStatusChange,
				Timestamp: time.Now(),
				RequestID: r.ID,
				OldStatus: old.Status,
				NewStatus: r.Status,
				Service:   cur.Service,
				Unit:      cur.Unit,
			})
			w.snapshot[r.ID] = cur
		}
	}

	// Forget requests that disappeared from the backend.
	if w.seeded {
		for id := range w.snapshot {
			if !currentIDs[id] {
				delete(w.snapshot, id)
				delete(w.lastChatID, id)
			}
		}
	}

	if !w.seeded {
		w.seeded = true
	}

	return events
}

// detectChatEvents fetches conversations for active requests and emits
// events for messages newer than the last announced one. The first fetch
// for a request seeds its high-water mark silently.
func (w *Watcher) detectChatEvents(ctx context.Context, reqs []models.ServiceRequest) ([]DetectedEvent, error) {
	var events []DetectedEvent
	for _, r := range reqs {
		if r.Status != models.StatusPending && r.Status != models.StatusScheduled {
			continue
		}
		msgs, err := w.chat.Messages(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", r.ID, err)
		}

		w.mu.Lock()
		last, seen := w.lastChatID[r.ID]
		high := last
		for _, m := range msgs {
			if m.ID > high {
				high = m.ID
			}
			if !seen || m.ID <= last {
				continue
			}
			if m.Sender.ID == w.selfID {
				continue
			}
			events = append(events, DetectedEvent{
				Type:       EventChatMessage,
				Timestamp:  m.DateCreated,
				RequestID:  r.ID,
				SenderName: m.Sender.FirstName,
				Text:       m.Message,
			})
		}
		w.lastChatID[r.ID] = high
		w.mu.Unlock()
	}
	return events, nil
}

// BuildDigest creates a digest event from the request snapshot. Returns
// nil (suppressed) when there is no open work or nothing changed since
// the last digest.
func (w *Watcher) BuildDigest() *DetectedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var current StatusDigest
	for _, s := range w.snapshot {
		switch s.Status {
		case models.StatusPending:
			current.Pending++
		case models.StatusScheduled:
			current.Scheduled++
		case models.StatusDone:
			current.Done++
		case models.StatusRejected:
			current.Rejected++
		}
	}

	// Suppress: nothing open that needs attention.
	if current.Pending == 0 && current.Scheduled == 0 {
		return nil
	}

	// Suppress: nothing changed since the last digest.
	if w.lastDigest != nil && *w.lastDigest == current {
		return nil
	}

	w.lastDigest = &current

	formatted := FormatDigest(current)
	return &DetectedEvent{
		Type:      EventDigest,
		Timestamp: time.Now(),
		Title:     formatted.Title,
		Body:      formatted.Body,
	}
}

// Seeded returns whether the watcher has completed its initial snapshot.
func (w *Watcher) Seeded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seeded
}
