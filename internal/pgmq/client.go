package pgmq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Client wraps the primary Postgres database for pgmq queue operations.
type Client struct {
	db querier
}

// New returns a pgmq client over db, usually a *pgxpool.Pool.
func New(db querier) *Client {
	return &Client{db: db}
}

// Message represents a single pgmq message.
type Message struct {
	ID   int64  // message identifier
	Data []byte // raw JSON payload
}

// Send pushes a JSON payload into the given queue and returns its message id.
func (c *Client) Send(ctx context.Context, queue string, payload []byte) (int64, error) {
	var id int64
	err := c.db.QueryRow(ctx, "SELECT pgmq.send($1, $2::jsonb, 0)", queue, string(payload)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("pgmq send failed: %w", err)
	}
	return id, nil
}

// Publish lets a queue stand in for a Pub/Sub topic.
func (c *Client) Publish(ctx context.Context, queue string, payload []byte) (string, error) {
	id, err := c.Send(ctx, queue, payload)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// ReadWithPoll reads up to maxMessages from the queue, blocking up to timeoutSec seconds.
// Messages stay invisible to other readers for timeoutSec*2 seconds.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*Message, error) {
	rows, err := c.db.Query(ctx, "SELECT msg_id, message FROM pgmq.read_with_poll($1, $2, $3, $4)",
		queue, timeoutSec*2, maxMessages, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll failed: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var id int64
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("pgmq read scan failed: %w", err)
		}
		msgs = append(msgs, &Message{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows error: %w", err)
	}
	return msgs, nil
}

// Delete removes messages by their IDs from the specified queue.
func (c *Client) Delete(ctx context.Context, queue string, msgIDs []int64) error {
	if _, err := c.db.Exec(ctx, "SELECT pgmq.delete($1, $2::bigint[])", queue, msgIDs); err != nil {
		return fmt.Errorf("pgmq delete failed: %w", err)
	}
	return nil
}
