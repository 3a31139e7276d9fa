package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"webcarros-backend/internal/application/emails"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/pkg/validation"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// UserSessionsPrefix indexes the session ids of one user: user_sessions:{uid}.
	UserSessionsPrefix = "user_sessions:"
	sessionPrefix      = "session:"
	bcryptCost         = 10
)

// SignUpInput is the register form.
type SignUpInput struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"required,webemail"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginInput for login request body.
type LoginInput struct {
	Email    string `json:"email" validate:"required,webemail"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput changes the display name.
type ProfileInput struct {
	Name string `json:"name" validate:"notblank"`
}

// SessionUser is the object stored in session under "user" and returned by /me.
type SessionUser struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSessionUser builds the session shape for u.
func NewSessionUser(u *domain.User) SessionUser {
	return SessionUser{UID: u.UID, Name: u.Name, Email: u.Email}
}

// Map is the form written into the session document.
func (s SessionUser) Map() map[string]interface{} {
	return map[string]interface{}{
		"uid":   s.UID,
		"name":  s.Name,
		"email": s.Email,
	}
}

// Service is the account provider: users in SQL, sessions index in Redis.
type Service struct {
	DB     *gorm.DB
	Rdb    *redis.Client
	Mailer emails.Sender
}

// SignUp creates the account. The welcome email is best effort.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Name: in.Name, Email: in.Email, PasswordHash: string(hash)}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, u.Email, u.Name); err != nil {
			log.Warn().Err(err).Str("uid", u.UID).Msg("auth: welcome email failed")
		}
	}
	return u, nil
}

// SignIn finds user by email and verifies password.
func (s *Service) SignIn(ctx context.Context, in LoginInput) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	var u domain.User
	err := s.DB.WithContext(ctx).Where("email = ?", strings.TrimSpace(strings.ToLower(in.Email))).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &u, nil
}

func (s *Service) Find(ctx context.Context, uid string) (*domain.User, error) {
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateProfile renames the user and rewrites every live session of that user.
func (s *Service) UpdateProfile(ctx context.Context, uid string, in ProfileInput) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Model(&domain.User{}).Where("uid = ?", uid).Update("name", in.Name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	u, err := s.Find(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.refreshSessions(ctx, NewSessionUser(u)); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("auth: session refresh failed")
	}
	return u, nil
}

// TrackSession adds sid to the user's session index.
func (s *Service) TrackSession(ctx context.Context, uid, sid string) error {
	if s.Rdb == nil || uid == "" || sid == "" {
		return nil
	}
	return s.Rdb.SAdd(ctx, UserSessionsPrefix+uid, sid).Err()
}

// ForgetSession deletes the session document and drops it from the index.
func (s *Service) ForgetSession(ctx context.Context, uid, sid string) error {
	if s.Rdb == nil || sid == "" {
		return nil
	}
	if err := s.Rdb.Del(ctx, sessionPrefix+sid).Err(); err != nil {
		return err
	}
	if uid == "" {
		return nil
	}
	return s.Rdb.SRem(ctx, UserSessionsPrefix+uid, sid).Err()
}

func (s *Service) refreshSessions(ctx context.Context, user SessionUser) error {
	if s.Rdb == nil {
		return nil
	}
	indexKey := UserSessionsPrefix + user.UID
	sids, err := s.Rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	for _, sid := range sids {
		b, err := s.Rdb.Get(ctx, sessionPrefix+sid).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = s.Rdb.SRem(ctx, indexKey, sid).Err()
			continue
		}
		if err != nil {
			return err
		}
		var data map[string]interface{}
		if err := json.Unmarshal(b, &data); err != nil {
			continue
		}
		data["user"] = user.Map()
		out, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if err := s.Rdb.Set(ctx, sessionPrefix+sid, out, redis.KeepTTL).Err(); err != nil {
			return err
		}
	}
	return nil
}

// VerifyUser validates the session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUser, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	uid, _ := m["uid"].(string)
	if uid == "" {
		return nil, ErrNotAuthenticated
	}
	return &SessionUser{
		UID:   uid,
		Name:  str(m["name"]),
		Email: str(m["email"]),
	}, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
