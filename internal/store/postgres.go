package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilpatel/fieldflow/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Agencies ---

func (s *PostgresStore) GetDefaultAgency(ctx context.Context) (*models.Agency, error) {
	var a models.Agency
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM agencies WHERE name = 'default' LIMIT 1`,
	).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default agency: %w", err)
	}
	return &a, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agency_id, engineer_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AgencyID, &k.EngineerID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.Scopes, &k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, agency_id, engineer_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.AgencyID, key.EngineerID, key.Name, key.KeyHash, key.KeyPrefix,
		key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, agencyID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agency_id, engineer_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE agency_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AgencyID, &k.EngineerID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.Scopes, &k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, agencyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND agency_id = $2 AND deleted_at IS NULL`, id, agencyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Engineers ---

func (s *PostgresStore) CreateEngineer(ctx context.Context, eng *models.Engineer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engineers (id, agency_id, name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		eng.ID, eng.AgencyID, eng.Name, eng.Phone, eng.CreatedAt, eng.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create engineer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEngineer(ctx context.Context, id uuid.UUID) (*models.Engineer, error) {
	var e models.Engineer
	err := s.pool.QueryRow(ctx,
		`SELECT id, agency_id, name, phone, created_at, updated_at FROM engineers WHERE id = $1`, id,
	).Scan(&e.ID, &e.AgencyID, &e.Name, &e.Phone, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get engineer: %w", err)
	}
	return &e, nil
}

// --- Jobs ---

const jobColumns = `id, job_number, agency_id, engineer_id, title, description, status, urgency,
	assigned_at, accepted_at, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.JobNumber, &j.AgencyID, &j.EngineerID, &j.Title, &j.Description,
		&j.Status, &j.Urgency, &j.AssignedAt, &j.AcceptedAt, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, job_number, agency_id, engineer_id, title, description, status, urgency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.JobNumber, job.AgencyID, job.EngineerID, job.Title, job.Description,
		job.Status, job.Urgency, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"agency_id = $1"}
	args := []any{filter.AgencyID}
	argIdx := 2

	if filter.EngineerID != nil {
		conditions = append(conditions, fmt.Sprintf("engineer_id = $%d", argIdx))
		args = append(args, *filter.EngineerID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Urgency != "" {
		conditions = append(conditions, fmt.Sprintf("urgency = $%d", argIdx))
		args = append(args, filter.Urgency)
		argIdx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM jobs WHERE %s`, where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	// Emergency first, then newest.
	dataQuery := fmt.Sprintf(
		`SELECT `+jobColumns+` FROM jobs WHERE %s
		 ORDER BY CASE urgency
			WHEN 'emergency' THEN 0
			WHEN 'urgent' THEN 1
			WHEN 'normal' THEN 2
			ELSE 3 END,
		 created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// stampColumns whitelists timestamp columns a status update may set.
// StampField always comes from the timestamp policy, but the query is
// assembled with Sprintf so the name is checked here regardless.
var stampColumns = map[string]bool{
	"assigned_at":  true,
	"accepted_at":  true,
	"started_at":   true,
	"completed_at": true,
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Job, error) {
	query := `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 RETURNING ` + jobColumns
	args := []any{update.To, update.StampAt, id, update.From}

	if update.StampField != "" {
		if !stampColumns[update.StampField] {
			return nil, fmt.Errorf("update job status: unknown timestamp column %q", update.StampField)
		}
		query = fmt.Sprintf(
			`UPDATE jobs SET status = $1, updated_at = $2, %s = $2 WHERE id = $3 AND status = $4 RETURNING `+jobColumns,
			update.StampField)
	}

	job, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// The row exists (the caller read it) but is no longer in the
		// expected status: a concurrent transition won the race.
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) AssignEngineer(ctx context.Context, id uuid.UUID, engineerID uuid.UUID, update StatusUpdate) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = $1, engineer_id = $2, assigned_at = $3, updated_at = $3
		 WHERE id = $4 AND status = $5 RETURNING `+jobColumns,
		update.To, engineerID, update.StampAt, id, update.From))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("assign engineer: %w", err)
	}
	return job, nil
}

// --- Status History ---

func (s *PostgresStore) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_history (id, job_id, status, actor_id, longitude, latitude, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.JobID, entry.Status, entry.ActorID, entry.Longitude, entry.Latitude,
		entry.Notes, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, jobID uuid.UUID, limit int) ([]*models.StatusHistoryEntry, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, status, actor_id, longitude, latitude, notes, created_at
		 FROM status_history WHERE job_id = $1 ORDER BY created_at DESC LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var entries []*models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Status, &e.ActorID, &e.Longitude, &e.Latitude,
			&e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
