package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// DeploymentRepository defines the interface for deployment data operations.
// "Queued" means coding has not started; queue order is strictly id ASC.
type DeploymentRepository interface {
	GetByID(ctx context.Context, id int32) (*models.Deployment, error)
	GetAllByProjectUndeleted(ctx context.Context, project string) ([]*models.Deployment, error)
	GetAllByProjectUnfinished(ctx context.Context, project string) ([]*models.Deployment, error)
	GetNextUnfinished(ctx context.Context) (*models.Deployment, error)
	GetQueuedCount(ctx context.Context) (int64, error)
	GetQueuedCountBefore(ctx context.Context, id int32) (int64, error)
	Insert(ctx context.Context, deployment *models.Deployment) error
	UpdateCodingStartedAt(ctx context.Context, id int32, at *int64) error
	UpdateCodingFinishedAt(ctx context.Context, id int32, at *int64) error
	UpdateCodingGitHash(ctx context.Context, id int32, hash *string) error
	UpdateImagegenStartedAt(ctx context.Context, id int32, at *int64) error
	UpdateImagegenFinishedAt(ctx context.Context, id int32, at *int64) error
	UpdateImagegenGitHash(ctx context.Context, id int32, hash *string) error
	UpdateDeploymentRequest(ctx context.Context, id int32, request *int64) error
	DeleteAllAfter(ctx context.Context, project string, after int32) error
}

type deploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepository creates a new deployment repository.
func NewDeploymentRepository(pool *pgxpool.Pool) DeploymentRepository {
	return &deploymentRepo{pool: pool}
}

const deploymentColumns = `id, project, instructions, submitted_at, coding_started_at, coding_finished_at, coding_git_hash, imagegen_started_at, imagegen_finished_at, imagegen_git_hash, deployment_request, deleted`

func scanDeployment(row pgx.Row) (*models.Deployment, error) {
	var d models.Deployment
	err := row.Scan(
		&d.ID,
		&d.Project,
		&d.Instructions,
		&d.SubmittedAt,
		&d.CodingStartedAt,
		&d.CodingFinishedAt,
		&d.CodingGitHash,
		&d.ImagegenStartedAt,
		&d.ImagegenFinishedAt,
		&d.ImagegenGitHash,
		&d.DeploymentRequest,
		&d.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deploymentRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.Deployment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// GetByID retrieves a deployment by id, deleted or not.
func (r *deploymentRepo) GetByID(ctx context.Context, id int32) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	return scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// GetAllByProjectUndeleted returns a project's visible history, oldest first.
func (r *deploymentRepo) GetAllByProjectUndeleted(ctx context.Context, project string) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE project = $1 AND deleted = FALSE ORDER BY id ASC`
	return r.queryMany(ctx, query, project)
}

// GetAllByProjectUnfinished returns the project's deployments that have not
// started coding yet.
func (r *deploymentRepo) GetAllByProjectUnfinished(ctx context.Context, project string) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE coding_started_at IS NULL AND project = $1 ORDER BY id ASC`
	return r.queryMany(ctx, query, project)
}

// GetNextUnfinished returns the oldest deployment that has not started coding.
func (r *deploymentRepo) GetNextUnfinished(ctx context.Context) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE coding_started_at IS NULL ORDER BY id ASC LIMIT 1`
	return scanDeployment(r.pool.QueryRow(ctx, query))
}

// GetQueuedCount returns the number of deployments waiting for a worker.
func (r *deploymentRepo) GetQueuedCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(id) FROM deployments WHERE coding_started_at IS NULL`).Scan(&count)
	return count, err
}

// GetQueuedCountBefore returns how many queued deployments precede the given id.
func (r *deploymentRepo) GetQueuedCountBefore(ctx context.Context, id int32) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(id) FROM deployments WHERE coding_started_at IS NULL AND id < $1`, id).Scan(&count)
	return count, err
}

// Insert creates a new deployment, assigning its serial id.
func (r *deploymentRepo) Insert(ctx context.Context, deployment *models.Deployment) error {
	query := `
		INSERT INTO deployments (project, instructions, submitted_at, coding_started_at, coding_finished_at, coding_git_hash, imagegen_started_at, imagegen_finished_at, imagegen_git_hash, deployment_request, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	return r.pool.QueryRow(ctx, query,
		deployment.Project,
		deployment.Instructions,
		deployment.SubmittedAt,
		deployment.CodingStartedAt,
		deployment.CodingFinishedAt,
		deployment.CodingGitHash,
		deployment.ImagegenStartedAt,
		deployment.ImagegenFinishedAt,
		deployment.ImagegenGitHash,
		deployment.DeploymentRequest,
		deployment.Deleted,
	).Scan(&deployment.ID)
}

func (r *deploymentRepo) UpdateCodingStartedAt(ctx context.Context, id int32, at *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET coding_started_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *deploymentRepo) UpdateCodingFinishedAt(ctx context.Context, id int32, at *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET coding_finished_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *deploymentRepo) UpdateCodingGitHash(ctx context.Context, id int32, hash *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET coding_git_hash = $1 WHERE id = $2`, hash, id)
	return err
}

func (r *deploymentRepo) UpdateImagegenStartedAt(ctx context.Context, id int32, at *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET imagegen_started_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *deploymentRepo) UpdateImagegenFinishedAt(ctx context.Context, id int32, at *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET imagegen_finished_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *deploymentRepo) UpdateImagegenGitHash(ctx context.Context, id int32, hash *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET imagegen_git_hash = $1 WHERE id = $2`, hash, id)
	return err
}

func (r *deploymentRepo) UpdateDeploymentRequest(ctx context.Context, id int32, request *int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET deployment_request = $1 WHERE id = $2`, request, id)
	return err
}

// DeleteAllAfter soft-deletes every deployment of the project newer than the
// given id. Used by reset; ids stay reserved.
func (r *deploymentRepo) DeleteAllAfter(ctx context.Context, project string, after int32) error {
	_, err := r.pool.Exec(ctx, `UPDATE deployments SET deleted = TRUE WHERE project = $1 AND id > $2`, project, after)
	return err
}

// Compile-time check to ensure deploymentRepo implements DeploymentRepository.
var _ DeploymentRepository = (*deploymentRepo)(nil)
