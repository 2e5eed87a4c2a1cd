package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"uniqueIndex;not null" json:"email"`
	EncryptedPassword string    `gorm:"not null" json:"-"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = gorm.ErrRecordNotFound

// ErrInvalidCredentials is returned when an email/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail retrieves a user by email.
func FindByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a user with the supplied credentials. It returns
// ErrUserExists if the email is already registered.
func CreateUser(logger *slog.Logger, dbConn *gorm.DB, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}

	if _, err := FindByEmail(dbConn, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
	}

	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Create(&newUser).Error
	})
	if err != nil {
		return nil, err
	}
	return &newUser, nil
}

// ChangePassword updates a user's password given their email.
func ChangePassword(logger *slog.Logger, dbConn *gorm.DB, email, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// Authenticate returns the user matching email and password.
func Authenticate(db *gorm.DB, email, password string) (*User, error) {
	user, err := FindByEmail(db, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.EncryptedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
