// Package views shapes listings for the public catalog, the detail page and the owner dashboard.
package views

import (
	"context"
	"strings"
	"time"

	"webcarros-backend/internal/domain"
)

// Reader is the read side of the listing repository.
type Reader interface {
	ListAll(ctx context.Context) ([]domain.Car, error)
	SearchByNamePrefix(ctx context.Context, prefix string) ([]domain.Car, error)
	ListByOwner(ctx context.Context, uid string) ([]domain.Car, error)
	Get(ctx context.Context, id string) (*domain.Car, error)
}

// Card is one tile of the catalog or the dashboard.
type Card struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Model      string           `json:"model"`
	Year       string           `json:"year"`
	Km         string           `json:"km"`
	Price      domain.Price     `json:"price"`
	PriceLabel string           `json:"priceLabel"`
	City       string           `json:"city"`
	Cover      string           `json:"cover"`
	Images     domain.CarImages `json:"images"`
}

// Detail is the full listing page.
type Detail struct {
	Card
	WhatsApp    string    `json:"whatsapp"`
	ContactURL  string    `json:"contactUrl"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	UID         string    `json:"uid"`
	Created     time.Time `json:"created"`
}

type Service struct {
	Cars Reader
}

// Browse lists the catalog: newest first, or only names starting with search.
func (s *Service) Browse(ctx context.Context, search string) ([]Card, error) {
	var (
		cars []domain.Car
		err  error
	)
	if strings.TrimSpace(search) == "" {
		cars, err = s.Cars.ListAll(ctx)
	} else {
		cars, err = s.Cars.SearchByNamePrefix(ctx, search)
	}
	if err != nil {
		return nil, err
	}
	return Cards(cars), nil
}

func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	car, err := s.Cars.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := NewDetail(car)
	return &d, nil
}

// Dashboard lists the cars of uid.
func (s *Service) Dashboard(ctx context.Context, uid string) ([]Card, error) {
	cars, err := s.Cars.ListByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}
	return Cards(cars), nil
}

func Cards(cars []domain.Car) []Card {
	out := make([]Card, 0, len(cars))
	for i := range cars {
		out = append(out, NewCard(&cars[i]))
	}
	return out
}

func NewCard(c *domain.Car) Card {
	images := c.Images
	if images == nil {
		images = domain.CarImages{}
	}
	cover := ""
	if len(images) > 0 {
		cover = images[0].URL
	}
	return Card{
		ID:         c.ID,
		Name:       c.Name,
		Model:      c.Model,
		Year:       c.Year,
		Km:         c.Km,
		Price:      c.Price,
		PriceLabel: PriceLabel(c.Price),
		City:       c.City,
		Cover:      cover,
		Images:     images,
	}
}

func NewDetail(c *domain.Car) Detail {
	return Detail{
		Card:        NewCard(c),
		WhatsApp:    c.WhatsApp,
		ContactURL:  "https://api.whatsapp.com/send?phone=" + c.WhatsApp,
		Description: c.Description,
		Owner:       c.Owner,
		UID:         c.UID,
		Created:     c.Created,
	}
}

// PriceLabel renders numeric prices as "R$ 45.000,00". Free text is kept after the currency.
func PriceLabel(p domain.Price) string {
	d, ok := p.Decimal()
	if !ok {
		s := strings.TrimSpace(string(p))
		if s == "" || strings.HasPrefix(s, "R$") {
			return s
		}
		return "R$ " + s
	}
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)
	intPart, frac := fixed, "00"
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, frac = fixed[:i], fixed[i+1:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}
