package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

// GetSetting reports whether the key is stored.
func (t *Tx) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.tx.GetContext(ctx, &value, `SELECT config_value FROM system_config WHERE config_key = ?`, key)
	if notFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// GetSettings returns the stored subset of keys.
func (t *Tx) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT config_key, config_value FROM system_config WHERE config_key IN (?)`, keys)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Key   string `db:"config_key"`
		Value string `db:"config_value"`
	}
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (t *Tx) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO system_config (config_key, config_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(config_key) DO UPDATE SET config_value = excluded.config_value, updated_at = excluded.updated_at`,
		key, value, t.now())
	return err
}

func (t *Tx) InsertChatMessage(ctx context.Context, m *models.ChatMessage) error {
	m.CreatedAt = t.now()
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO chat_logs (id, role, content, created_at) VALUES (:id, :role, :content, :created_at)`, m)
	return err
}

// RecentChat returns the last limit messages in chronological order.
func (t *Tx) RecentChat(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	if err := t.tx.SelectContext(ctx, &msgs, `
		SELECT id, role, content, created_at FROM chat_logs
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ChatHistory pages backwards from the newest message; each page is
// chronological.
func (t *Tx) ChatHistory(ctx context.Context, limit, offset int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	if err := t.tx.SelectContext(ctx, &msgs, `
		SELECT id, role, content, created_at FROM chat_logs
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (t *Tx) UpdateChatMessage(ctx context.Context, id, content string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE chat_logs SET content = ? WHERE id = ?`, content, id)
	return err
}

func (t *Tx) ClearChat(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM chat_logs`)
	return err
}
