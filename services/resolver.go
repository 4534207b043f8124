package services

import (
	"context"
	"database/sql"
	"fmt"
)

// UnknownTrashcanName is the sentinel row shared by all ingests that carry
// no trashcan id. It is created once and reused.
const UnknownTrashcanName = "UNKNOWN"

// resolveTrashcan maps an optional raw trashcan id to a canonical row id,
// creating the row on first sight. All reads and writes go through the
// caller's transaction so a later failure rolls the creation back too.
//
// An incoming detection revives a soft-deleted can: the is_deleted flag is
// cleared as a side effect before the id is returned.
func resolveTrashcan(ctx context.Context, tx *sql.Tx, id *int64) (int64, error) {
	if id != nil {
		var isDeleted bool
		err := tx.QueryRowContext(ctx,
			"SELECT is_deleted FROM trash_cans WHERE trashcan_id = ?", *id).Scan(&isDeleted)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO trash_cans (trashcan_id, trashcan_name) VALUES (?, ?)",
				*id, fmt.Sprintf("TrashCan %d", *id)); err != nil {
				return 0, fmt.Errorf("failed to create trashcan %d: %w", *id, err)
			}
			return *id, nil
		case err != nil:
			return 0, fmt.Errorf("failed to query trashcan %d: %w", *id, err)
		}
		if isDeleted {
			if _, err := tx.ExecContext(ctx,
				"UPDATE trash_cans SET is_deleted = FALSE WHERE trashcan_id = ?", *id); err != nil {
				return 0, fmt.Errorf("failed to revive trashcan %d: %w", *id, err)
			}
		}
		return *id, nil
	}

	var sentinelID int64
	err := tx.QueryRowContext(ctx,
		"SELECT trashcan_id FROM trash_cans WHERE trashcan_name = ?", UnknownTrashcanName).Scan(&sentinelID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			"INSERT INTO trash_cans (trashcan_name, trashcan_city) VALUES (?, ?)",
			UnknownTrashcanName, UnknownTrashcanName)
		if err != nil {
			return 0, fmt.Errorf("failed to create sentinel trashcan: %w", err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("failed to query sentinel trashcan: %w", err)
	}
	return sentinelID, nil
}

// resolveWasteType maps a raw class id to a waste type row, creating it with
// the given class name on first sight. Check-then-act inside the caller's
// transaction; no race handling beyond that.
func resolveWasteType(ctx context.Context, tx *sql.Tx, classID int64, className string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT waste_type_id FROM waste_types WHERE waste_type_id = ?", classID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO waste_types (waste_type_id, type_name) VALUES (?, ?)",
			classID, className); err != nil {
			return 0, fmt.Errorf("failed to create waste type %d: %w", classID, err)
		}
		return classID, nil
	case err != nil:
		return 0, fmt.Errorf("failed to query waste type %d: %w", classID, err)
	}
	return id, nil
}
