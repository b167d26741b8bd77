package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pathakanu/assistant/internal/model"
	"github.com/pathakanu/assistant/internal/twilio"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrEmailExists is returned when registering an email already in use.
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned when looking up a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrMissingFields is returned when username or password is empty.
	ErrMissingFields = errors.New("username and password are required")
)

// Registration is the input for creating an account.
type Registration struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// Users manages accounts stored through GORM.
type Users struct {
	db *gorm.DB
}

// NewUsers returns a Users backed by db.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Register creates an account with a bcrypt-hashed password.
func (u *Users) Register(ctx context.Context, reg Registration) (model.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Password == "" {
		return model.User{}, ErrMissingFields
	}

	db := u.db.WithContext(ctx)
	var count int64
	if err := db.Model(&model.User{}).Where("username = ?", reg.Username).Count(&count).Error; err != nil {
		return model.User{}, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return model.User{}, ErrUserExists
	}

	user := model.User{Username: reg.Username}
	if reg.Email != "" {
		if err := db.Model(&model.User{}).Where("email = ?", reg.Email).Count(&count).Error; err != nil {
			return model.User{}, fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return model.User{}, ErrEmailExists
		}
		email := reg.Email
		user.Email = &email
	}
	if phone := strings.TrimSpace(reg.Phone); phone != "" {
		user.Phone = twilio.SanitizeWhatsAppNumber(phone)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hash)

	if err := db.Create(&user).Error; err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (u *Users) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, ErrMissingFields
	}
	user, err := u.Get(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get loads one user by username.
func (u *Users) Get(ctx context.Context, username string) (model.User, error) {
	var user model.User
	err := u.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// List returns every user ordered by id.
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := u.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// PhoneFor returns the registered WhatsApp number of username, or "" when the
// user is unknown or has none.
func (u *Users) PhoneFor(ctx context.Context, username string) (string, error) {
	user, err := u.Get(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Phone, nil
}
