package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CarImage references one stored blob. Name is the owner segment of the blob key.
type CarImage struct {
	UID  string `json:"uid" firestore:"uid"`
	Name string `json:"name" firestore:"name"`
	URL  string `json:"url" firestore:"url"`
}

// ObjectKey is the blob key for the image: images/{owner}/{uid}.
func (i CarImage) ObjectKey() string {
	return ImageObjectKey(i.Name, i.UID)
}

// ImageObjectKey builds the blob key for an owner and image id.
func ImageObjectKey(owner, uid string) string {
	return "images/" + owner + "/" + uid
}

// CarImages is stored in a single json column; order is display order.
type CarImages []CarImage

// Scan implements sql.Scanner for reading from DB (json column).
func (ci *CarImages) Scan(value interface{}) error {
	if value == nil {
		*ci = CarImages{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for CarImages")
	}
	if len(raw) == 0 {
		*ci = CarImages{}
		return nil
	}
	return json.Unmarshal(raw, ci)
}

// Value implements driver.Valuer for writing to DB.
func (ci CarImages) Value() (driver.Value, error) {
	if ci == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ci)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Without returns a copy with the image uid removed.
func (ci CarImages) Without(uid string) CarImages {
	out := make(CarImages, 0, len(ci))
	for _, img := range ci {
		if img.UID != uid {
			out = append(out, img)
		}
	}
	return out
}

// Find returns the image with the given uid.
func (ci CarImages) Find(uid string) (CarImage, bool) {
	for _, img := range ci {
		if img.UID == uid {
			return img, true
		}
	}
	return CarImage{}, false
}

// Price is kept as text. Forms send strings, older clients send numbers;
// numbers are normalized through decimal so 45000 and 45000.0 read the same.
type Price string

// UnmarshalJSON accepts a JSON string or number.
func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(str))
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("price must be a string or a number")
	}
	*p = Price(d.String())
	return nil
}

// PriceOf converts a decoded document value to a Price. Documents written by
// other clients may hold the price as an integer or a double.
func PriceOf(v interface{}) (Price, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return Price(strings.TrimSpace(x)), nil
	case int64:
		return Price(decimal.NewFromInt(x).String()), nil
	case int:
		return Price(decimal.NewFromInt(int64(x)).String()), nil
	case float64:
		return Price(decimal.NewFromFloat(x).String()), nil
	default:
		return "", fmt.Errorf("unsupported price type %T", v)
	}
}

// Decimal parses the price when it is numeric. Free-text prices ("R$ 45.000") are not.
func (p Price) Decimal() (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(string(p)))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Car is one vehicle listing (collection / table "cars").
type Car struct {
	ID          string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name        string    `gorm:"column:name;not null;index" json:"name"`
	Model       string    `gorm:"column:model;not null" json:"model"`
	Year        string    `gorm:"column:year;not null" json:"year"`
	Km          string    `gorm:"column:km;not null" json:"km"`
	Price       Price     `gorm:"column:price;not null" json:"price"`
	City        string    `gorm:"column:city;not null" json:"city"`
	WhatsApp    string    `gorm:"column:whatsapp;not null" json:"whatsapp"`
	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	Created     time.Time `gorm:"column:created;not null;index" json:"created"`
	Owner       string    `gorm:"column:owner" json:"owner"`
	UID         string    `gorm:"column:uid;not null;index" json:"uid"`
	Images      CarImages `gorm:"column:images;type:json" json:"images"`
}

func (Car) TableName() string {
	return "cars"
}

// BeforeCreate sets the id if not set.
func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// OwnedBy reports whether uid owns the listing.
func (c *Car) OwnedBy(uid string) bool {
	return uid != "" && c.UID == uid
}
