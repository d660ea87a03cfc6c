// activity_repository.go implements ActivityRepository, writing and listing the
// request activity log with optional filters by user, resource type and date range.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/projecthub/projecthub/internal/db/models"
)

// ActivityRepository handles activity log database operations
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ActivityFilters contains filters for querying activity logs
type ActivityFilters struct {
	UserID       *string
	ResourceType *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// CreateActivityLog records one activity entry
func (r *ActivityRepository) CreateActivityLog(ctx context.Context, log *models.ActivityLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	var metadataJSON []byte
	if log.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, resource_type, resource_id, ip_address, status_code, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		log.ID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.IPAddress,
		log.StatusCode,
		metadataJSON,
		log.CreatedAt,
	)
	return err
}

// ListActivityLogs returns matching entries newest first, plus the total match count.
func (r *ActivityRepository) ListActivityLogs(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*models.ActivityLog, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.UserID != nil {
		where += fmt.Sprintf(` AND user_id = $%d`, paramIndex)
		args = append(args, *filters.UserID)
		paramIndex++
	}
	if filters.ResourceType != nil {
		where += fmt.Sprintf(` AND resource_type = $%d`, paramIndex)
		args = append(args, *filters.ResourceType)
		paramIndex++
	}
	if filters.StartDate != nil {
		where += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		args = append(args, *filters.StartDate)
		paramIndex++
	}
	if filters.EndDate != nil {
		where += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		args = append(args, *filters.EndDate)
		paramIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, action, resource_type, resource_id, ip_address, status_code, metadata, created_at
		FROM activity_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]*models.ActivityLog, 0)
	for rows.Next() {
		log, err := scanActivityLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	return logs, total, rows.Err()
}

// GetActivityLog retrieves a single entry by ID
func (r *ActivityRepository) GetActivityLog(ctx context.Context, logID string) (*models.ActivityLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, action, resource_type, resource_id, ip_address, status_code, metadata, created_at
		FROM activity_logs
		WHERE id = $1
	`, logID)

	log, err := scanActivityLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivityLog(s rowScanner) (*models.ActivityLog, error) {
	log := &models.ActivityLog{}
	var metadataJSON []byte
	err := s.Scan(
		&log.ID,
		&log.UserID,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&log.IPAddress,
		&log.StatusCode,
		&metadataJSON,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &log.Metadata); err != nil {
			return nil, err
		}
	}
	return log, nil
}
