package bootstrap

import (
	"fmt"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/pkg/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Podcast{},
		&entity.LiveStream{},
	)
}

type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// SeedAdminUser creates the initial admin account unless a user with the same
// username or email already exists.
func SeedAdminUser(db *gorm.DB, seed AdminSeed) error {
	var count int64
	if err := db.Model(&entity.User{}).
		Where("username = ? OR email = ?", seed.Username, seed.Email).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		zap.L().Info("admin user already exists, skipping seed", zap.String("username", seed.Username))
		return nil
	}

	plain := seed.Password
	generated := plain == ""
	if generated {
		plain = uuid.NewString()
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := entity.User{
		Username:     seed.Username,
		Email:        seed.Email,
		PasswordHash: hash,
		IsActive:     true,
		Role:         entity.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	fields := []zap.Field{zap.String("username", admin.Username), zap.String("email", admin.Email)}
	if generated {
		// ADMIN_PASSWORD was not set; this is the only place the password is shown
		fields = append(fields, zap.String("generated_password", plain))
	}
	zap.L().Info("admin user seeded", fields...)

	return nil
}
