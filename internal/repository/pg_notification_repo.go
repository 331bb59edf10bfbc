package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitjobs/notifier/internal/db"
	"github.com/gitjobs/notifier/internal/domain"
)

const notificationColumns = `
		n.notification_id, n.kind, n.user_id, COALESCE(u.email, ''), n.template_data,
		n.processed, n.error, n.created_at, n.processed_at`

type pgNotificationRepository struct {
	pool   *pgxpool.Pool
	leases *db.LeaseRegistry
}

// NewPgNotificationRepository returns a NotificationRepository backed by
// PostgreSQL. Lease operations run on transactions held by leases.
func NewPgNotificationRepository(pool *pgxpool.Pool, leases *db.LeaseRegistry) NotificationRepository {
	return &pgNotificationRepository{pool: pool, leases: leases}
}

func (r *pgNotificationRepository) Enqueue(ctx context.Context, n *domain.NewNotification) ([]*domain.Notification, error) {
	if len(n.Recipients) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data any
	if len(n.TemplateData) > 0 {
		data = string(n.TemplateData)
	}
	now := time.Now().UTC()

	created := make([]*domain.Notification, 0, len(n.Recipients))
	for _, userID := range n.Recipients {
		// Version 7 ids are time-ordered, so id order is enqueue order.
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate notification id: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO notification (notification_id, kind, user_id, template_data, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			id, string(n.Kind), userID, data, now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRecipient, userID)
			}
			return nil, fmt.Errorf("insert notification: %w", err)
		}

		created = append(created, &domain.Notification{
			ID:           id,
			Kind:         n.Kind,
			UserID:       userID,
			TemplateData: n.TemplateData,
			CreatedAt:    now,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return created, nil
}

func (r *pgNotificationRepository) Begin(ctx context.Context) (uuid.UUID, error) {
	return r.leases.Open(ctx)
}

func (r *pgNotificationRepository) DequeueOne(ctx context.Context, lease uuid.UUID) (*domain.Notification, error) {
	var n *domain.Notification
	err := r.leases.Use(ctx, lease, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT`+notificationColumns+`
			FROM notification n
			JOIN users u ON u.user_id = n.user_id
			WHERE n.processed = FALSE
			ORDER BY n.notification_id
			LIMIT 1
			FOR UPDATE OF n SKIP LOCKED`)

		found, err := scanNotification(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dequeue notification: %w", err)
		}
		n = found
		return nil
	})
	return n, err
}

func (r *pgNotificationRepository) MarkProcessed(ctx context.Context, lease uuid.UUID, id uuid.UUID, errMsg *string) error {
	return r.leases.Use(ctx, lease, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE notification
			SET processed = TRUE, error = $2, processed_at = NOW()
			WHERE notification_id = $1`, id, errMsg)
		if err != nil {
			return fmt.Errorf("mark notification processed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *pgNotificationRepository) Commit(ctx context.Context, lease uuid.UUID) error {
	return r.leases.Close(ctx, lease, true)
}

func (r *pgNotificationRepository) Rollback(ctx context.Context, lease uuid.UUID) error {
	return r.leases.Close(ctx, lease, false)
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+notificationColumns+`
		FROM notification n
		LEFT JOIN users u ON u.user_id = n.user_id
		WHERE n.notification_id = $1`, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM notification n" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`
		SELECT%s
		FROM notification n
		LEFT JOIN users u ON u.user_id = n.user_id%s
		ORDER BY n.notification_id DESC
		LIMIT $%d OFFSET $%d`, notificationColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	return notifications, total, err
}

func (r *pgNotificationRepository) CountPending(ctx context.Context) (int, error) {
	var pending int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE processed = FALSE`).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("count pending notifications: %w", err)
	}
	return pending, nil
}

// ---- helpers ----

// scanNotification reads a single notification row from any pgx row type.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n    domain.Notification
		kind string
		data []byte
	)
	err := row.Scan(
		&n.ID, &kind, &n.UserID, &n.Email, &data,
		&n.Processed, &n.Error, &n.CreatedAt, &n.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if n.Kind, err = domain.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("notification %s: %w", n.ID, err)
	}
	if data != nil {
		n.TemplateData = data
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var result []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Kind != nil {
		add("n.kind = $%d", string(*f.Kind))
	}
	if f.Processed != nil {
		add("n.processed = $%d", *f.Processed)
	}
	if f.Failed != nil {
		if *f.Failed {
			conditions = append(conditions, "n.error IS NOT NULL")
		} else {
			conditions = append(conditions, "n.error IS NULL")
		}
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
