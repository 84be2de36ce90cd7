package repository

import (
	"context"

	"crawford.app/podcastserver/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, podcast *entity.Podcast) error
	FindByID(ctx context.Context, id uint) (*entity.Podcast, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*entity.Podcast, error)
	FindAll(ctx context.Context, offset, limit int) ([]*entity.Podcast, error)
	FindByOwner(ctx context.Context, ownerID uint) ([]*entity.Podcast, error)
	Search(ctx context.Context, query string, limit int) ([]*entity.Podcast, error)
	// Update writes metadata and asset columns; counters are never overwritten.
	Update(ctx context.Context, podcast *entity.Podcast) error
	Delete(ctx context.Context, id uint) error
	// IncrementViews and IncrementPlays bump the counter in one statement and
	// return the updated row.
	IncrementViews(ctx context.Context, id uint) (*entity.Podcast, error)
	IncrementPlays(ctx context.Context, id uint) (*entity.Podcast, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, podcast *entity.Podcast) error {
	return r.db.WithContext(ctx).Create(podcast).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*entity.Podcast, error) {
	var podcast entity.Podcast
	if err := r.db.WithContext(ctx).First(&podcast, id).Error; err != nil {
		return nil, err
	}
	return &podcast, nil
}

// FindByIDs returns the podcasts in the order of ids, skipping missing ones.
func (r *repository) FindByIDs(ctx context.Context, ids []uint) ([]*entity.Podcast, error) {
	if len(ids) == 0 {
		return []*entity.Podcast{}, nil
	}

	var podcasts []*entity.Podcast
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&podcasts).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]*entity.Podcast, len(podcasts))
	for _, p := range podcasts {
		byID[p.ID] = p
	}
	ordered := make([]*entity.Podcast, 0, len(podcasts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *repository) FindAll(ctx context.Context, offset, limit int) ([]*entity.Podcast, error) {
	var podcasts []*entity.Podcast
	if err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&podcasts).Error; err != nil {
		return nil, err
	}
	return podcasts, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uint) ([]*entity.Podcast, error) {
	var podcasts []*entity.Podcast
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&podcasts).Error; err != nil {
		return nil, err
	}
	return podcasts, nil
}

func (r *repository) Search(ctx context.Context, query string, limit int) ([]*entity.Podcast, error) {
	like := "%" + query + "%"
	var podcasts []*entity.Podcast
	if err := r.db.WithContext(ctx).
		Where("title ILIKE ? OR description ILIKE ? OR author ILIKE ?", like, like, like).
		Order("plays DESC").
		Limit(limit).
		Find(&podcasts).Error; err != nil {
		return nil, err
	}
	return podcasts, nil
}

func (r *repository) Update(ctx context.Context, podcast *entity.Podcast) error {
	return r.db.WithContext(ctx).
		Model(podcast).
		Select("title", "description", "author", "duration_minutes", "audio_file_url", "cover_art_url", "updated_at").
		Updates(podcast).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.Podcast{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) IncrementViews(ctx context.Context, id uint) (*entity.Podcast, error) {
	return r.increment(ctx, id, "views")
}

func (r *repository) IncrementPlays(ctx context.Context, id uint) (*entity.Podcast, error) {
	return r.increment(ctx, id, "plays")
}

func (r *repository) increment(ctx context.Context, id uint, column string) (*entity.Podcast, error) {
	var podcast entity.Podcast
	result := r.db.WithContext(ctx).
		Model(&podcast).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &podcast, nil
}
