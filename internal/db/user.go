package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User 后台管理员账号
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// EnsureUser 在账号不存在时创建管理员，用户名或密码为空时跳过。返回是否新建了账号。
func EnsureUser(gdb *gorm.DB, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return false, nil
	}
	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	var count int64
	if err := gdb.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if err := gdb.Create(&User{Username: username, Password: string(hashed)}).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate returns the user whose bcrypt hash matches password.
func Authenticate(gdb *gorm.DB, username, password string) (*User, error) {
	var user User
	err := gdb.Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}
