package repository

import (
	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// workspaceRepository implements the WorkspaceRepository interface
type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new workspace repository instance
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// Create creates a new workspace in the database
func (r *workspaceRepository) Create(workspace *models.Workspace) error {
	return r.db.Create(workspace).Error
}

// GetByID retrieves a workspace by its ID
func (r *workspaceRepository) GetByID(id uint) (*models.Workspace, error) {
	var workspace models.Workspace
	err := r.db.First(&workspace, id).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

// GetByOwnerID retrieves all workspaces owned by a user
func (r *workspaceRepository) GetByOwnerID(ownerID uint) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&workspaces).Error
	return workspaces, err
}

// Update updates an existing workspace in the database
func (r *workspaceRepository) Update(workspace *models.Workspace) error {
	return r.db.Save(workspace).Error
}

// Delete soft deletes a workspace by its ID
func (r *workspaceRepository) Delete(id uint) error {
	return r.db.Delete(&models.Workspace{}, id).Error
}
