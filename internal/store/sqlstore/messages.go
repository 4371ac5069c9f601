package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/dbx"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/status"
	"github.com/pliu/dmchat/internal/timex"
)

const messageColumns = "id, sender_id, receiver_id, text, image, status, created_at"

const betweenClause = "(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)"

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var st int
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &st, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Status = status.Status(st)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *SQLStore) Append(ctx context.Context, msg *models.Message) (string, error) {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = timex.Now()
	}
	if msg.Status == status.Unknown {
		msg.Status = status.Sent
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	query := s.rebind("INSERT INTO messages (" + messageColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, int(msg.Status), msg.CreatedAt)
	if err != nil {
		return "", dbError(err)
	}
	return msg.ID, nil
}

func (s *SQLStore) findMessage(ctx context.Context, q dbx.DBTX, id string) (*models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE id = ?")
	m, err := scanMessage(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}
	return m, nil
}

func (s *SQLStore) FindMessageByID(ctx context.Context, id string) (*models.Message, error) {
	return s.findMessage(ctx, s.db, id)
}

func (s *SQLStore) FindBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE " + betweenClause + " ORDER BY created_at ASC, id ASC")
	rows, err := s.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, dbError(err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return messages, nil
}

func (s *SQLStore) FindLatestBetween(ctx context.Context, a, b string) (*models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE " + betweenClause + " ORDER BY created_at DESC, id DESC LIMIT 1")
	m, err := scanMessage(s.db.QueryRowContext(ctx, query, a, b, b, a))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError(err)
	}
	return m, nil
}

// LatestPerPeer folds in Go rather than with MAX(created_at): SQLite hands
// aggregates back as text, which does not scan into time.Time.
func (s *SQLStore) LatestPerPeer(ctx context.Context, userID string) (map[string]time.Time, error) {
	query := s.rebind("SELECT sender_id, receiver_id, created_at FROM messages WHERE sender_id = ? OR receiver_id = ?")
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	latest := make(map[string]time.Time)
	for rows.Next() {
		var sender, receiver string
		var at time.Time
		if err := rows.Scan(&sender, &receiver, &at); err != nil {
			return nil, dbError(err)
		}
		peer := sender
		if sender == userID {
			peer = receiver
		}
		if at.After(latest[peer]) {
			latest[peer] = at.UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return latest, nil
}

// UpdateStatus is a compare-and-swap on the status column.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, expected, next status.Status) error {
	query := s.rebind("UPDATE messages SET status = ? WHERE id = ? AND status = ?")
	res, err := s.db.ExecContext(ctx, query, int(next), id, int(expected))
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the message is gone or its status moved on.
	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM messages WHERE id = ?"), id).Scan(&count); err != nil {
		return dbError(err)
	}
	if count == 0 {
		return common.ErrNotFound
	}
	return fmt.Errorf("%w: message %s is no longer %s", common.ErrConflict, id, expected)
}

func (s *SQLStore) DeleteByID(ctx context.Context, id, requesterID string) (*models.Message, error) {
	var deleted *models.Message
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		m, err := s.findMessage(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.SenderID != requesterID {
			return fmt.Errorf("%w: only the sender can delete a message", common.ErrForbidden)
		}
		if err := s.exec(ctx, tx, "DELETE FROM messages WHERE id = ? AND sender_id = ?", id, requesterID); err != nil {
			return err
		}
		deleted = m
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}
	return deleted, nil
}

func (s *SQLStore) CountSent(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM messages WHERE sender_id = ?"), userID).Scan(&n)
	if err != nil {
		return 0, dbError(err)
	}
	return n, nil
}
