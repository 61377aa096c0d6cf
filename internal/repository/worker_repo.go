package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// WorkerRepository defines the interface for worker VM data operations.
type WorkerRepository interface {
	GetCount(ctx context.Context) (int64, error)
	GetAllNoSetupFinished(ctx context.Context) ([]*models.Worker, error)
	GetAllDynamicUnassigned(ctx context.Context) ([]*models.Worker, error)
	GetAllAssigned(ctx context.Context) ([]*models.Worker, error)
	GetAvailable(ctx context.Context) (*models.Worker, error)
	GetByAssignment(ctx context.Context, deployment int32) (*models.Worker, error)
	Insert(ctx context.Context, worker *models.Worker) error
	UpdateCoderDeployment(ctx context.Context, id int32, request *int64) error
	UpdateImagegenDeployment(ctx context.Context, id int32, request *int64) error
	UpdateSetupFinished(ctx context.Context, id int32, finished bool) error
	UpdateAssignment(ctx context.Context, id int32, deployment *int32) error
	Delete(ctx context.Context, id int32) error
}

type workerRepo struct {
	pool *pgxpool.Pool
}

// NewWorkerRepository creates a new worker repository.
func NewWorkerRepository(pool *pgxpool.Pool) WorkerRepository {
	return &workerRepo{pool: pool}
}

const workerColumns = `id, hardware, coder_deployment, imagegen_deployment, setup_finished, assignment, dynamic`

func scanWorker(row pgx.Row) (*models.Worker, error) {
	var w models.Worker
	err := row.Scan(
		&w.ID,
		&w.Hardware,
		&w.CoderDeployment,
		&w.ImagegenDeployment,
		&w.SetupFinished,
		&w.Assignment,
		&w.Dynamic,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.Worker, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// GetCount returns the fleet size.
func (r *workerRepo) GetCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(id) FROM workers`).Scan(&count)
	return count, err
}

// GetAllNoSetupFinished returns the workers still advancing through setup.
func (r *workerRepo) GetAllNoSetupFinished(ctx context.Context) ([]*models.Worker, error) {
	return r.queryMany(ctx, `SELECT `+workerColumns+` FROM workers WHERE setup_finished = FALSE`)
}

// GetAllDynamicUnassigned returns the workers eligible for teardown.
func (r *workerRepo) GetAllDynamicUnassigned(ctx context.Context) ([]*models.Worker, error) {
	return r.queryMany(ctx, `SELECT `+workerColumns+` FROM workers WHERE dynamic = TRUE AND assignment IS NULL`)
}

// GetAllAssigned returns the workers currently bound to a deployment.
func (r *workerRepo) GetAllAssigned(ctx context.Context) ([]*models.Worker, error) {
	return r.queryMany(ctx, `SELECT `+workerColumns+` FROM workers WHERE assignment IS NOT NULL`)
}

// GetAvailable returns one ready, unassigned worker if any.
func (r *workerRepo) GetAvailable(ctx context.Context) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE setup_finished = TRUE AND assignment IS NULL LIMIT 1`
	return scanWorker(r.pool.QueryRow(ctx, query))
}

// GetByAssignment returns the worker bound to the given deployment if any.
func (r *workerRepo) GetByAssignment(ctx context.Context, deployment int32) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE assignment = $1 LIMIT 1`
	return scanWorker(r.pool.QueryRow(ctx, query, deployment))
}

// Insert creates a new worker row, assigning its serial id.
func (r *workerRepo) Insert(ctx context.Context, worker *models.Worker) error {
	query := `
		INSERT INTO workers (hardware, coder_deployment, imagegen_deployment, setup_finished, assignment, dynamic)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.pool.QueryRow(ctx, query,
		worker.Hardware,
		worker.CoderDeployment,
		worker.ImagegenDeployment,
		worker.SetupFinished,
		worker.Assignment,
		worker.Dynamic,
	).Scan(&worker.ID)
}

func (r *workerRepo) UpdateCoderDeployment(ctx context.Context, id int32, request *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET coder_deployment = $1 WHERE id = $2`, request, id)
	return err
}

func (r *workerRepo) UpdateImagegenDeployment(ctx context.Context, id int32, request *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET imagegen_deployment = $1 WHERE id = $2`, request, id)
	return err
}

func (r *workerRepo) UpdateSetupFinished(ctx context.Context, id int32, finished bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET setup_finished = $1 WHERE id = $2`, finished, id)
	return err
}

func (r *workerRepo) UpdateAssignment(ctx context.Context, id int32, deployment *int32) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET assignment = $1 WHERE id = $2`, deployment, id)
	return err
}

// Delete removes a worker row after its VM has been torn down.
func (r *workerRepo) Delete(ctx context.Context, id int32) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	return err
}

// Compile-time check to ensure workerRepo implements WorkerRepository.
var _ WorkerRepository = (*workerRepo)(nil)
