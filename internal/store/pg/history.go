package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"lordre.org/internal/history"
)

var _ history.Store = (*Store)(nil)

func (s *Store) Append(ctx context.Context, e *history.Entry) error {
	metaJSON := []byte("{}")
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into action_history (id, action_type, actor_id, target_id, target_type, description, metadata, created_at)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6, $7, $8)
	`, e.ID, string(e.Type), e.ActorID, e.TargetID, e.TargetType, e.Description, metaJSON, e.CreatedAt)
	return err
}

func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		select h.id, h.action_type, h.actor_id, coalesce(p.pseudonym, ''),
		       coalesce(h.target_id, ''), coalesce(h.target_type, ''),
		       h.description, h.metadata, h.created_at
		from action_history h
		left join profiles p on p.id = h.actor_id
		order by h.created_at desc, h.id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []history.Entry
	for rows.Next() {
		var (
			e       history.Entry
			rawMeta []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.ActorID, &e.ActorName, &e.TargetID, &e.TargetType, &e.Description, &rawMeta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 && string(rawMeta) != "{}" {
			if err := json.Unmarshal(rawMeta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
