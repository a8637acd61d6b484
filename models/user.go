package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Username    string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	DisplayName string    `gorm:"size:255;not null" json:"display_name" binding:"required"`
	// NormalizedName is DisplayName through the donor-key normalization, so
	// donor entries can be matched to app users despite accents and casing.
	NormalizedName string `gorm:"size:191;index" json:"-"`
	Email       *string   `gorm:"size:100;unique" json:"email"`
	Password    string    `gorm:"size:255;not null" json:"password"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	Role        UserRole  `gorm:"type:enum('M','A','P');default:'M'" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username    string   `json:"username" binding:"required"`
	DisplayName string   `json:"display_name" binding:"required"`
	Email       string   `json:"email"`
	Password    string   `json:"password" binding:"required"`
	Role        UserRole `json:"role"`
}

/*
caches:
	User:$username
	Token:$token -> username
*/

func (user *User) BeforeSave(tx *gorm.DB) error {
	user.NormalizedName = utils.NormalizeDonorName(user.DisplayName)
	return nil
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func (result *User) PrepareGive() {
	result.Password = ""
}

type LoginInfo struct {
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:    strings.ToLower(strings.TrimSpace(input.Username)),
		DisplayName: input.DisplayName,
		Password:    string(hashed),
		IsActive:    utils.Ptr(true),
		Role:        input.Role,
	}
	if input.Email != "" {
		user.Email = &input.Email
	}
	if user.Role == "" {
		user.Role = UserRoleMember
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, errors.New("username or email already taken")
		}
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	user := User{}

	// get User info, redis or db
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return nil, errors.New("invalid username or password")
		}
	}

	// check login credentials
	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return nil, errors.New("invalid username or password")
	}

	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	token := utils.NewSessionToken()
	lifespan := utils.SessionLifespan()

	// store session + user cache in redis
	if err := config.SetRedisValue("Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject("User:"+user.Username, &user, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:       token,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	}, nil
}

// Logout destroys the current session.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	return true, nil
}

// GetUserByUsername reads through the redis cache.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
	}
	return &user, nil
}

// RequireRole gates privileged operations on the session user's role.
// Pastors implicitly hold admin rights for reconciliation actions; the
// pastoral sub-ledger itself is pastor-only.
func RequireRole(ctx context.Context, roles ...UserRole) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return utils.ErrorUnauthorized
	}
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return utils.ErrorUnauthorized
	}
	for _, role := range roles {
		if user.Role == role {
			return nil
		}
	}
	return utils.ErrorUnauthorized
}
