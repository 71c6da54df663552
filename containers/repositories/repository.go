package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"container-tracker/containers/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("container not found")
	ErrDuplicateNumber = errors.New("container with this number already exists")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]models.Container, error) {
	var containers []models.Container
	err := r.db.WithContext(ctx).Order("id").Find(&containers).Error
	return containers, err
}

func (r *Repository) Get(ctx context.Context, id uint) (*models.Container, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// NumberTaken reports whether a record other than excludeID already uses number.
// Pass 0 to check against every record. The check is not atomic with any
// later write.
func (r *Repository) NumberTaken(ctx context.Context, number string, excludeID uint) (bool, error) {
	return numberTaken(r.db.WithContext(ctx), number, excludeID)
}

func (r *Repository) Create(ctx context.Context, container *models.Container) error {
	now := r.db.NowFunc().Truncate(time.Millisecond)
	container.CreatedAt = now
	container.UpdatedAt = now
	return r.db.WithContext(ctx).Create(container).Error
}

// Update applies patch to the record with the given id inside a transaction.
func (r *Repository) Update(ctx context.Context, id uint, patch models.ContainerPatch) (*models.Container, error) {
	var updated *models.Container

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := r.get(tx, id)
		if err != nil {
			return err
		}

		if patch.ContainerNumber != nil {
			taken, err := numberTaken(tx, *patch.ContainerNumber, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateNumber
			}
			container.ContainerNumber = *patch.ContainerNumber
		}
		if patch.ISOCode != nil {
			container.ISOCode = *patch.ISOCode
		}
		if patch.OtherInfo != nil {
			container.OtherInfo = *patch.OtherInfo
		}

		container.UpdatedAt = nextUpdate(container.UpdatedAt, r.db.NowFunc())
		if err := tx.Save(container).Error; err != nil {
			return fmt.Errorf("save container %d: %w", id, err)
		}

		updated = container
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete permanently removes the record and returns it as it was.
func (r *Repository) Delete(ctx context.Context, id uint) (*models.Container, error) {
	var deleted *models.Container

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := r.get(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Container{}, id).Error; err != nil {
			return fmt.Errorf("delete container %d: %w", id, err)
		}
		deleted = container
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Search matches case-insensitive substrings; empty filters are ignored and
// supplied filters must all match.
func (r *Repository) Search(ctx context.Context, number, isoCode string) ([]models.Container, error) {
	query := r.db.WithContext(ctx).Model(&models.Container{})

	if number != "" {
		query = query.Where("LOWER(container_number) LIKE ?", likePattern(number))
	}
	if isoCode != "" {
		query = query.Where("LOWER(iso_code) LIKE ?", likePattern(isoCode))
	}

	var containers []models.Container
	err := query.Order("id").Find(&containers).Error
	return containers, err
}

func (r *Repository) get(db *gorm.DB, id uint) (*models.Container, error) {
	var container models.Container
	err := db.First(&container, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load container %d: %w", id, err)
	}
	return &container, nil
}

func numberTaken(db *gorm.DB, number string, excludeID uint) (bool, error) {
	query := db.Model(&models.Container{}).Where("container_number = ?", number)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check container number: %w", err)
	}
	return count > 0, nil
}

// nextUpdate keeps updated_at strictly increasing at millisecond precision,
// the finest every supported store keeps without rounding.
func nextUpdate(previous, now time.Time) time.Time {
	now = now.Truncate(time.Millisecond)
	if now.After(previous) {
		return now
	}
	return previous.Truncate(time.Millisecond).Add(time.Millisecond)
}

func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}
