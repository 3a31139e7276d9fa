package cars

import (
	"context"
	"errors"
	"strings"

	"webcarros-backend/internal/domain"

	"gorm.io/gorm"
)

// Store persists listings. Implementations: GormStore (SQL) and firestore.CarStore.
type Store interface {
	Create(ctx context.Context, car *domain.Car) error
	Get(ctx context.Context, id string) (*domain.Car, error)
	ListByOwner(ctx context.Context, uid string) ([]domain.Car, error)
	// ListAll returns every listing, newest first.
	ListAll(ctx context.Context) ([]domain.Car, error)
	// SearchByNamePrefix gets an uppercase, non-empty prefix.
	SearchByNamePrefix(ctx context.Context, prefix string) ([]domain.Car, error)
	// Update overwrites the editable fields and the whole image sequence.
	Update(ctx context.Context, car *domain.Car) error
	UpdateImages(ctx context.Context, id string, imgs domain.CarImages) error
	Delete(ctx context.Context, id string) error
}

// GormStore keeps listings in the "cars" table.
type GormStore struct {
	DB *gorm.DB
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Create(ctx context.Context, car *domain.Car) error {
	return s.DB.WithContext(ctx).Create(car).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*domain.Car, error) {
	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &car, nil
}

func (s *GormStore) ListByOwner(ctx context.Context, uid string) ([]domain.Car, error) {
	var out []domain.Car
	if err := s.DB.WithContext(ctx).Where("uid = ?", uid).Order("created DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]domain.Car, error) {
	var out []domain.Car
	if err := s.DB.WithContext(ctx).Order("created DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchByNamePrefix matches with an escaped LIKE prefix, ordered by name.
func (s *GormStore) SearchByNamePrefix(ctx context.Context, prefix string) ([]domain.Car, error) {
	var out []domain.Car
	err := s.DB.WithContext(ctx).
		Where(`name LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// LIKE folds ASCII case in SQLite; names are stored uppercase but keep the match exact.
	filtered := out[:0]
	for _, c := range out {
		if strings.HasPrefix(c.Name, prefix) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *GormStore) Update(ctx context.Context, car *domain.Car) error {
	res := s.DB.WithContext(ctx).Model(&domain.Car{}).Where("id = ?", car.ID).Updates(map[string]interface{}{
		"name":        car.Name,
		"model":       car.Model,
		"year":        car.Year,
		"km":          car.Km,
		"price":       car.Price,
		"city":        car.City,
		"whatsapp":    car.WhatsApp,
		"description": car.Description,
		"images":      car.Images,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateImages(ctx context.Context, id string, imgs domain.CarImages) error {
	if imgs == nil {
		imgs = domain.CarImages{}
	}
	res := s.DB.WithContext(ctx).Model(&domain.Car{}).Where("id = ?", id).Update("images", imgs)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.Car{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
