// Package probe measures how long newly inserted courses take to become
// visible in the search index, by following the change events the catalog
// publishes to a pgmq queue.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms/internal/pgmq"
	"lms/internal/pubsub"
	"lms/internal/repository"
	"lms/internal/search"

	"github.com/rs/zerolog"
)

// ErrNotVisible means the document did not show up before GiveUpAfter.
var ErrNotVisible = errors.New("document not visible in index")

// Queue is the subset of the pgmq client the probe reads from.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgIDs []int64) error
}

type Options struct {
	Queue        string
	Bound        time.Duration
	PollInterval time.Duration
	GiveUpAfter  time.Duration
	BatchSize    int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.GiveUpAfter <= 0 {
		o.GiveUpAfter = 30 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	return o
}

// Run consumes change events until ctx is done.
func Run(ctx context.Context, logger zerolog.Logger, queue Queue, index search.Index, opts Options) error {
	opts = opts.withDefaults()
	logger.Info().Str("queue", opts.Queue).Dur("bound", opts.Bound).Msg("Starting staleness probe")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down staleness probe")
			return nil
		default:
		}

		msgs, err := queue.ReadWithPoll(ctx, opts.Queue, 5, opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading change queue")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		ids := make([]int64, 0, len(msgs))
		for _, msg := range msgs {
			handle(ctx, logger, index, msg, opts)
			ids = append(ids, msg.ID)
		}
		if len(ids) == 0 {
			continue
		}
		if err := queue.Delete(ctx, opts.Queue, ids); err != nil {
			logger.Error().Err(err).Msg("Error deleting change messages")
		}
	}
}

func handle(ctx context.Context, logger zerolog.Logger, index search.Index, msg *pgmq.Message, opts Options) {
	var ev pubsub.ChangeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Warn().Err(err).Int64("msg_id", msg.ID).Msg("Skipping undecodable change event")
		return
	}
	// Only fresh inserts are measured; a replaced document is already indexed.
	if ev.Table != repository.CourseTable.Name || !ev.InsertOnly {
		logger.Debug().Int64("msg_id", msg.ID).Str("table", ev.Table).Msg("Ignoring change event")
		return
	}

	lag, err := Observe(ctx, index, ev, opts)
	log := logger.With().Int64("msg_id", msg.ID).Str("course_id", ev.Key["id"]).Logger()
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Course never became visible")
	case lag > opts.Bound:
		log.Warn().Dur("lag", lag).Dur("bound", opts.Bound).Msg("Index lag exceeded staleness bound")
	default:
		log.Info().Dur("lag", lag).Msg("Course visible in index")
	}
}

// Observe polls the index until the course in ev is visible and returns the
// time elapsed since the write.
func Observe(ctx context.Context, index search.Index, ev pubsub.ChangeEvent, opts Options) (time.Duration, error) {
	opts = opts.withDefaults()
	giveUp := time.NewTimer(opts.GiveUpAfter)
	defer giveUp.Stop()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	teacherID, courseID := ev.Key["teacher_id"], ev.Key["id"]
	for {
		_, err := index.GetByKey(ctx, teacherID, courseID, search.Projection{Includes: []string{"id"}})
		if err == nil {
			return time.Since(ev.WrittenAt), nil
		}
		if !errors.Is(err, search.ErrNotFound) {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-giveUp.C:
			return 0, fmt.Errorf("course %s/%s after %s: %w", teacherID, courseID, opts.GiveUpAfter, ErrNotVisible)
		case <-ticker.C:
		}
	}
}
