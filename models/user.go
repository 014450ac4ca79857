package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('A', 'O', 'C');default:C" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required"`
	IsActive *bool    `json:"is_active" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

/*
caches:
	User:$username
	Token:$token
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func (result *User) PrepareGive() {
	result.Password = ""
}

type LoginInfo struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Role  string `json:"role"`

	// ApiToken is a JWT for programmatic callers (ops tooling, service to
	// service); the session token above drives the interactive dashboard.
	ApiToken string `json:"api_token"`
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var result LoginInfo

	user := User{}
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return &result, errors.New("invalid username or password")
		}
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	if !utils.DereferencePtr(user.IsActive) {
		return &result, errors.New("user is disabled")
	}

	token := uuid.New()
	result.Token = token.String()
	result.Name = user.Username
	result.Role = string(user.Role)

	apiToken, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return &result, err
	}
	result.ApiToken = apiToken

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}
	if err := config.SetRedisValue("Token:"+token.String(), user.Username, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return &result, err
	}
	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + fmt.Sprint(token)); err != nil {
		return false, nil
	}
	return true, nil
}

// GetSessionUser resolves the authenticated user for the current request.
func GetSessionUser(ctx context.Context) (*User, error) {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return nil, &utils.AuthError{Reason: "not authenticated"}
	}
	user := User{}
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, &utils.AuthError{Reason: "user not found"}
		}
		_ = config.SetRedisObject("User:"+username, &user, time.Hour)
	}
	return &user, nil
}

// RequirePrivileged guards project-independent write operations: only admins
// and operators.
func RequirePrivileged(ctx context.Context) (*User, error) {
	user, err := GetSessionUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsPrivileged() {
		return nil, &utils.AuthError{Reason: "insufficient permissions"}
	}
	return user, nil
}

// CanMutateProject is the mutation predicate for one project: privileged
// roles always pass, other users only for projects they own.
func CanMutateProject(ctx context.Context, projectId int) (*User, error) {
	user, err := GetSessionUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.Role.IsPrivileged() {
		return user, nil
	}
	project, err := GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if project.OwnerUserId != user.ID {
		return nil, &utils.AuthError{Reason: "not the project owner"}
	}
	return user, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if !IsValidUserRole(input.Role) {
		return nil, utils.NewValidationError("role", "invalid user role")
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: input.Username,
		Name:     input.Name,
		Password: string(hashed),
		IsActive: input.IsActive,
		Role:     input.Role,
	}
	if input.Email != "" {
		user.Email = &input.Email
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.NewValidationError("username", "already taken")
		}
		return nil, err
	}
	return &user, nil
}

func IsValidUserRole(r UserRole) bool {
	_, err := ParseUserRole(string(r))
	return err == nil
}
