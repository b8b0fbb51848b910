package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	kspai "github.com/kisahsukses/kspai/internal"
)

// InsertMessages batch-inserts messages in the given order.
func (s *Store) InsertMessages(ctx context.Context, msgs []kspai.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	const cols = 5
	placeholders := make([]string, len(msgs))
	args := make([]any, 0, len(msgs)*cols)
	for i, m := range msgs {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("message id: %w", err)
		}
		placeholders[i] = "(?, ?, ?, ?, ?)"
		args = append(args, id.String(), m.SessionID, string(m.Role), m.Text, m.TS.UTC().Format(time.RFC3339Nano))
	}

	query := `INSERT INTO session_messages (id, session_id, role, text, created_at) VALUES ` +
		strings.Join(placeholders, ", ")
	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// DeleteSession removes all messages of a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID)
	return err
}

// LoadRecentMessages returns up to perSession newest messages of every
// session, grouped by session and oldest first within each.
func (s *Store) LoadRecentMessages(ctx context.Context, perSession int) ([]kspai.Message, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT session_id, role, text, created_at FROM (
			SELECT session_id, role, text, created_at, seq,
			       ROW_NUMBER() OVER (PARTITION BY session_id ORDER BY seq DESC) AS rn
			FROM session_messages
		 ) WHERE rn <= ? ORDER BY session_id, seq`, perSession,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kspai.Message
	for rows.Next() {
		var (
			m         kspai.Message
			role      string
			createdAt string
		)
		if err := rows.Scan(&m.SessionID, &role, &m.Text, &createdAt); err != nil {
			return nil, err
		}
		m.Role = kspai.Role(role)
		if t, e := time.Parse(time.RFC3339Nano, createdAt); e == nil {
			m.TS = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TrimMessages keeps only the newest keep messages of each session.
func (s *Store) TrimMessages(ctx context.Context, keep int) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM session_messages WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY session_id ORDER BY seq DESC) AS rn
				FROM session_messages
			) WHERE rn > ?
		 )`, keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
