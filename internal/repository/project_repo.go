// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// ProjectRepository defines the interface for project data operations.
type ProjectRepository interface {
	GetByName(ctx context.Context, name string) (*models.Project, error)
	GetByID(ctx context.Context, id int32) (*models.Project, error)
	GetAll(ctx context.Context) ([]*models.Project, error)
	GetCount(ctx context.Context) (int64, error)
	GetAllByOwner(ctx context.Context, owner string) ([]*models.Project, error)
	GetNextUnminted(ctx context.Context) (*models.Project, error)
	Insert(ctx context.Context, project *models.Project) error
	UpdateOwner(ctx context.Context, name, owner string) error
	UpdateAccountAssociation(ctx context.Context, name string, assoc *models.AccountAssociation) error
	UpdateBaseBuild(ctx context.Context, name string, build *models.BaseBuild) error
	UpdateVersion(ctx context.Context, name string, version *string) error
	UpdateNFTMint(ctx context.Context, name string, tx *string) error
}

type projectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepo{pool: pool}
}

const projectColumns = `id, name, owner, account_association, base_build, version, nft_mint`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Owner,
		&p.AccountAssociation,
		&p.BaseBuild,
		&p.Version,
		&p.NFTMint,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByName retrieves a project by its unique name.
func (r *projectRepo) GetByName(ctx context.Context, name string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`
	return scanProject(r.pool.QueryRow(ctx, query, name))
}

// GetByID retrieves a project by its serial id (= NFT token id).
func (r *projectRepo) GetByID(ctx context.Context, id int32) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.pool.QueryRow(ctx, query, id))
}

// GetAll retrieves all projects ordered by id.
func (r *projectRepo) GetAll(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetCount returns the global project count.
func (r *projectRepo) GetCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count)
	return count, err
}

// GetAllByOwner retrieves all projects owned by an account.
func (r *projectRepo) GetAllByOwner(ctx context.Context, owner string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner = $1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetNextUnminted returns the oldest project without a recorded mint transaction.
func (r *projectRepo) GetNextUnminted(ctx context.Context) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE nft_mint IS NULL ORDER BY id ASC LIMIT 1`
	return scanProject(r.pool.QueryRow(ctx, query))
}

// Insert creates a new project, assigning its serial id.
func (r *projectRepo) Insert(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (name, owner, account_association, base_build, version, nft_mint)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.pool.QueryRow(ctx, query,
		project.Name,
		project.Owner,
		project.AccountAssociation,
		project.BaseBuild,
		project.Version,
		project.NFTMint,
	).Scan(&project.ID)
}

// UpdateOwner rewrites a project's owner. Only the NFT sync calls this.
func (r *projectRepo) UpdateOwner(ctx context.Context, name, owner string) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET owner = $1 WHERE name = $2`, owner, name)
	return err
}

// UpdateAccountAssociation replaces the project's account association document.
func (r *projectRepo) UpdateAccountAssociation(ctx context.Context, name string, assoc *models.AccountAssociation) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET account_association = $1 WHERE name = $2`, assoc, name)
	return err
}

// UpdateBaseBuild replaces the project's base build options.
func (r *projectRepo) UpdateBaseBuild(ctx context.Context, name string, build *models.BaseBuild) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET base_build = $1 WHERE name = $2`, build, name)
	return err
}

// UpdateVersion pins (or clears) the project's source version.
func (r *projectRepo) UpdateVersion(ctx context.Context, name string, version *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET version = $1 WHERE name = $2`, version, name)
	return err
}

// UpdateNFTMint records the mint transaction hash.
func (r *projectRepo) UpdateNFTMint(ctx context.Context, name string, tx *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET nft_mint = $1 WHERE name = $2`, tx, name)
	return err
}

// Compile-time check to ensure projectRepo implements ProjectRepository.
var _ ProjectRepository = (*projectRepo)(nil)
