package repository

import (
	"context"

	"crawford.app/podcastserver/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, stream *entity.LiveStream) error
	FindByID(ctx context.Context, id uint) (*entity.LiveStream, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*entity.LiveStream, error)
	FindAll(ctx context.Context, status *entity.StreamStatus, offset, limit int) ([]*entity.LiveStream, error)
	FindByHost(ctx context.Context, hostID uint) ([]*entity.LiveStream, error)
	Search(ctx context.Context, query string, status *entity.StreamStatus, limit int) ([]*entity.LiveStream, error)
	// Update writes the editable columns and the lifecycle timestamps.
	// current_viewers is only written when withViewers is set, so a metadata
	// edit never clobbers concurrent joins and leaves. total_views is never written.
	Update(ctx context.Context, stream *entity.LiveStream, withViewers bool) error
	Delete(ctx context.Context, id uint) error
	// HasActiveStream reports whether hostID holds a live or scheduled stream
	// other than excludeID.
	HasActiveStream(ctx context.Context, hostID, excludeID uint) (bool, error)
	// IncrementViewers only matches live streams. A zero-row update yields
	// gorm.ErrRecordNotFound whether the stream is missing or not live.
	IncrementViewers(ctx context.Context, id uint) (*entity.LiveStream, error)
	// DecrementViewers is floored at zero. A zero-row update yields
	// gorm.ErrRecordNotFound whether the stream is missing or already at zero.
	DecrementViewers(ctx context.Context, id uint) (*entity.LiveStream, error)
	// WithHostLock runs fn in a transaction holding a row lock on the host's
	// user record, serialising stream activation per host.
	WithHostLock(ctx context.Context, hostID uint, fn func(tx Repository) error) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

var activeStatuses = []entity.StreamStatus{entity.StatusLive, entity.StatusScheduled}

func (r *repository) Create(ctx context.Context, stream *entity.LiveStream) error {
	return r.db.WithContext(ctx).Create(stream).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*entity.LiveStream, error) {
	var stream entity.LiveStream
	if err := r.db.WithContext(ctx).First(&stream, id).Error; err != nil {
		return nil, err
	}
	return &stream, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uint) ([]*entity.LiveStream, error) {
	if len(ids) == 0 {
		return []*entity.LiveStream{}, nil
	}

	var streams []*entity.LiveStream
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&streams).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]*entity.LiveStream, len(streams))
	for _, s := range streams {
		byID[s.ID] = s
	}
	ordered := make([]*entity.LiveStream, 0, len(streams))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

func (r *repository) FindAll(ctx context.Context, status *entity.StreamStatus, offset, limit int) ([]*entity.LiveStream, error) {
	query := r.db.WithContext(ctx).Model(&entity.LiveStream{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var streams []*entity.LiveStream
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&streams).Error; err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *repository) FindByHost(ctx context.Context, hostID uint) ([]*entity.LiveStream, error) {
	var streams []*entity.LiveStream
	if err := r.db.WithContext(ctx).Where("host_id = ?", hostID).Find(&streams).Error; err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *repository) Search(ctx context.Context, query string, status *entity.StreamStatus, limit int) ([]*entity.LiveStream, error) {
	like := "%" + query + "%"
	db := r.db.WithContext(ctx).Where("(title ILIKE ? OR description ILIKE ?)", like, like)
	if status != nil {
		db = db.Where("status = ?", *status)
	}

	var streams []*entity.LiveStream
	if err := db.Order("total_views DESC").Limit(limit).Find(&streams).Error; err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *repository) Update(ctx context.Context, stream *entity.LiveStream, withViewers bool) error {
	columns := []interface{}{"description", "stream_url", "status", "start_time", "end_time", "updated_at"}
	if withViewers {
		columns = append(columns, "current_viewers")
	}
	return r.db.WithContext(ctx).
		Model(stream).
		Select("title", columns...).
		Updates(stream).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.LiveStream{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) HasActiveStream(ctx context.Context, hostID, excludeID uint) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.LiveStream{}).
		Where("host_id = ? AND status IN ?", hostID, activeStatuses)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) IncrementViewers(ctx context.Context, id uint) (*entity.LiveStream, error) {
	var stream entity.LiveStream
	result := r.db.WithContext(ctx).
		Model(&stream).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, entity.StatusLive).
		UpdateColumns(map[string]interface{}{
			"current_viewers": gorm.Expr("current_viewers + ?", 1),
			"total_views":     gorm.Expr("total_views + ?", 1),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &stream, nil
}

func (r *repository) DecrementViewers(ctx context.Context, id uint) (*entity.LiveStream, error) {
	var stream entity.LiveStream
	result := r.db.WithContext(ctx).
		Model(&stream).
		Clauses(clause.Returning{}).
		Where("id = ? AND current_viewers > 0", id).
		UpdateColumn("current_viewers", gorm.Expr("current_viewers - ?", 1))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &stream, nil
}

func (r *repository) WithHostLock(ctx context.Context, hostID uint, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var host entity.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&host, hostID).Error; err != nil {
			return err
		}
		return fn(&repository{db: tx})
	})
}
