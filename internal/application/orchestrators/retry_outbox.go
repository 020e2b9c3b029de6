package orchestrators

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	emailAdapter "academy/internal/adapters/email"
	outboxStore "academy/internal/adapters/storage/outbox"
	domain "academy/internal/domain/outbox"
)

// Outbox processing defaults.
const (
	DefaultOutboxBaseDelay = 30 * time.Second
	DefaultOutboxMaxDelay  = time.Hour
	DefaultOutboxBatchSize = 20
)

// ErrTerminalEntry is returned when a manual retry targets a finished entry.
var ErrTerminalEntry = errors.New("outbox entry is in a terminal state")

// ActionExecutor delivers one kind of outbox entry.
type ActionExecutor interface {
	// Execute runs the external action for the entry.
	// Returns the provider's id for the delivery.
	Execute(ctx context.Context, e domain.Entry) (string, error)
}

// OutboxProcessor drains pending outbox entries with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
	log       *zap.Logger
}

// NewOutboxProcessor creates a processor with the default backoff.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor, log *zap.Logger) *OutboxProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: DefaultOutboxBaseDelay,
		maxDelay:  DefaultOutboxMaxDelay,
		batchSize: DefaultOutboxBatchSize,
		now:       time.Now,
		log:       log,
	}
}

// ProcessPending attempts every due entry in one batch.
// PRE: Context is valid
// POST: attempted entries are saved with their new status; returns how many were attempted
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "list pending outbox entries")
	}
	attempted := 0
	for _, entry := range entries {
		if !entry.IsDue(p.now(), p.baseDelay, p.maxDelay) {
			continue
		}
		attempted++
		if err := p.process(ctx, entry); err != nil {
			p.log.Error("outbox_process_failed", zap.String("entry_id", entry.ID), zap.String("action_type", entry.ActionType), zap.Error(err))
		}
	}
	return attempted, nil
}

// ProcessSingle retries one entry immediately, ignoring backoff.
// PRE: entryID is non-empty
// POST: Entry is processed, status updated
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.IsTerminal() {
		return errors.Wrapf(ErrTerminalEntry, "entry %s", entryID)
	}
	return p.process(ctx, entry)
}

// AbandonEntry stops any further attempt on an entry.
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	entry.MarkAbandoned()
	return p.store.Save(ctx, entry)
}

func (p *OutboxProcessor) process(ctx context.Context, entry domain.Entry) error {
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAttempt(p.now())
		entry.MarkFailed(errors.Errorf("no executor registered for action type %s", entry.ActionType))
		return p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(p.now())
	externalID, err := executor.Execute(ctx, entry)
	if err != nil {
		entry.MarkFailed(err)
		p.log.Warn("outbox_action_failed", zap.String("entry_id", entry.ID), zap.Int("attempt", entry.Attempts), zap.Error(err))
	} else {
		entry.MarkSuccess(externalID)
		p.log.Info("outbox_action_succeeded", zap.String("entry_id", entry.ID), zap.String("external_id", externalID))
	}
	return p.store.Save(ctx, entry)
}

// EmailExecutor renders a notification email and hands it to the sender.
type EmailExecutor struct {
	Sender emailAdapter.Sender
}

// Execute sends the email described by the entry payload.
// PRE: e.ActionType == domain.ActionTypeEmail
// POST: returns the provider message id
// INVARIANT: outbox entry status managed by caller
func (x EmailExecutor) Execute(ctx context.Context, e domain.Entry) (string, error) {
	payload, err := e.EmailPayload()
	if err != nil {
		return "", err
	}
	html, text, err := emailAdapter.Render(payload.Markdown)
	if err != nil {
		return "", err
	}
	res, err := x.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{payload.To},
		Subject: payload.Subject,
		HTML:    html,
		Text:    text,
		Tags: map[string]string{
			"notification_id": payload.NotificationID,
			"event_id":        payload.EventID,
		},
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}
