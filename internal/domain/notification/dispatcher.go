package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/notify"
)

// StoreDispatcher persists emitted events as notification rows. Dispatch is
// fire and forget: a failed insert is logged and never surfaced to the
// operation that produced the event.
type StoreDispatcher struct {
	repo Repository
	log  zerolog.Logger
}

func NewStoreDispatcher(repo Repository, log zerolog.Logger) *StoreDispatcher {
	return &StoreDispatcher{repo: repo, log: log}
}

func (d *StoreDispatcher) Dispatch(ctx context.Context, ev notify.Event) {
	if !ev.Kind.Valid() {
		d.log.Warn().Str("kind", string(ev.Kind)).Msg("dropping event of unknown kind")
		return
	}
	n := &Notification{
		RecipientID: ev.Recipient,
		ActorID:     ev.Actor,
		ActorName:   ev.ActorName,
		Kind:        string(ev.Kind),
		CommentID:   ev.CommentID,
		TargetType:  ev.TargetType,
		TargetID:    ev.TargetID,
		Preview:     ev.Preview,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		d.log.Error().Err(err).
			Str("kind", string(ev.Kind)).
			Str("recipient", ev.Recipient.String()).
			Msg("failed to store notification")
	}
}
