package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const passwordHashCost = 12

// Claims is the content of the bearer tokens issued at signup and login.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.StandardClaims
}

// AuthResult is returned to a client that signed up or logged in.
type AuthResult struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Token  string    `json:"token"`
}

// NewUser holds the client supplied values of an account to create.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Image    *Upload
}

// UserSummary is a User as listed to other users.
type UserSummary struct {
	models.User
	PlaceCount   int64               `json:"placeCount"`
	FollowStatus models.FollowStatus `json:"followStatus,omitempty"`
}

type UserManager struct {
	db      *gorm.DB
	config  *models.Config
	media   MediaStore
	follows *FollowManager
}

func NewUserManager(db *gorm.DB, config *models.Config, media MediaStore, follows *FollowManager) *UserManager {
	return &UserManager{db: db, config: config, media: media, follows: follows}
}

func (m *UserManager) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	result := m.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// Signup creates an account and returns a token for it.
func (m *UserManager) Signup(ctx context.Context, input NewUser) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	var count int64
	if result := m.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count); result.Error != nil {
		return nil, ServerError("Signing up failed, please try again later.", result.Error)
	}
	if count > 0 {
		return nil, Unprocessable("User exists already, please login instead.", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), passwordHashCost)
	if err != nil {
		return nil, ServerError("Could not create user, please try again.", err)
	}
	user := models.User{Name: input.Name, Email: email, Password: string(hash)}
	if input.Image != nil {
		imagePath, err := m.media.Upload(ctx, UserImagesFolder, input.Image)
		if err != nil {
			var mapped *Error
			if errors.As(err, &mapped) {
				return nil, mapped
			}
			return nil, ServerError("Image upload failed, please try again", err)
		}
		user.Image = imagePath
	}

	if result := m.db.WithContext(ctx).Create(&user); result.Error != nil {
		if user.Image != "" {
			if err := m.media.Delete(context.WithoutCancel(ctx), user.Image); err != nil {
				log.Warnf("UserManager: could not delete image %s: %s", user.Image, err.Error())
			}
		}
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, Unprocessable("User exists already, please login instead.", result.Error)
		}
		return nil, ServerError("Signing up failed, please try again later.", result.Error)
	}
	log.Infof("UserManager: Created new user %s", user.Email)
	return m.authResult(&user)
}

// Login checks the credentials and returns a new token.
func (m *UserManager) Login(ctx context.Context, email string, password string) (*AuthResult, error) {
	invalid := Forbidden("Invalid credentials, could not log you in.")
	var user models.User
	result := m.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, ServerError("Logging in failed, please try again later.", result.Error)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalid
	}
	return m.authResult(&user)
}

// ListUsers returns all users with their number of places.
// When callerID is set, the caller is excluded and the follow status towards each user is included.
func (m *UserManager) ListUsers(ctx context.Context, callerID *uuid.UUID) ([]UserSummary, error) {
	var users []models.User
	query := m.db.WithContext(ctx).Order("name")
	if callerID != nil {
		query = query.Where("id <> ?", *callerID)
	}
	if result := query.Find(&users); result.Error != nil {
		return nil, ServerError("Fetching users failed, please try again later.", result.Error)
	}

	var counts []struct {
		UserID uuid.UUID
		Count  int64
	}
	result := m.db.WithContext(ctx).Model(&models.UserPlace{}).Select("user_id, count(*) as count").Group("user_id").Scan(&counts)
	if result.Error != nil {
		return nil, ServerError("Fetching users failed, please try again later.", result.Error)
	}
	placeCounts := make(map[uuid.UUID]int64, len(counts))
	for _, count := range counts {
		placeCounts[count.UserID] = count.Count
	}

	var statuses map[uuid.UUID]models.FollowStatus
	if callerID != nil {
		var err error
		if statuses, err = m.follows.Statuses(ctx, *callerID); err != nil {
			return nil, ServerError("Fetching users failed, please try again later.", err)
		}
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summary := UserSummary{User: user, PlaceCount: placeCounts[user.ID]}
		if callerID != nil {
			summary.FollowStatus = "none"
			if status, ok := statuses[user.ID]; ok {
				summary.FollowStatus = status
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// CreateToken issues a signed bearer token for the user.
func (m *UserManager) CreateToken(user *models.User) (string, error) {
	claims := &Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(m.config.TokenValidity).Unix(),
			Subject:   user.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SigningKey))
}

// ParseToken validates a bearer token and returns the identity it was issued for.
func ParseToken(signingKey []byte, tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return signingKey, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, jwt.ErrSignatureInvalid
	}
	return uuid.FromString(claims.UserID)
}

func (m *UserManager) authResult(user *models.User) (*AuthResult, error) {
	token, err := m.CreateToken(user)
	if err != nil {
		return nil, ServerError("Could not log you in, please try again later.", err)
	}
	return &AuthResult{UserID: user.ID, Email: user.Email, Token: token}, nil
}
