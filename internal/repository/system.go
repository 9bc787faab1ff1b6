package repository

import "context"

// ResetCheckups removes every record and its dependants, keeping projects,
// indicators and settings. It returns the stored paths of removed files.
func (t *Tx) ResetCheckups(ctx context.Context) ([]string, error) {
	var paths []string
	if err := t.tx.SelectContext(ctx, &paths, `SELECT stored_path FROM checkup_files`); err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`DELETE FROM indicator_values`,
		`DELETE FROM ocr_results`,
		`DELETE FROM ai_analyses`,
		`DELETE FROM checkup_files`,
		`DELETE FROM checkup_records`,
	} {
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// ResetAll additionally removes the catalog and the chat log.
func (t *Tx) ResetAll(ctx context.Context) ([]string, error) {
	paths, err := t.ResetCheckups(ctx)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`DELETE FROM indicators`,
		`DELETE FROM checkup_projects`,
		`DELETE FROM chat_logs`,
	} {
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
