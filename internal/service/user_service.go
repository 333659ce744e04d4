package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/example/goshop/internal/auth"
	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/user"
	"github.com/example/goshop/internal/errs"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// Register 注册顾客账号
func (s *UserService) Register(ctx context.Context, email, name, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, errs.Validation("email and password are required")
	}
	u := &user.User{
		Email: email,
		Name:  name,
		Salt:  "goshop", // 简化实现，真实业务请使用随机盐
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errs.IsNotFound(err) {
			return "", errs.Unauthorized("invalid email or password")
		}
		return "", err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errs.Unauthorized("invalid email or password")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Email, u.IsAdmin)
}

// Get 查询用户
func (s *UserService) Get(ctx context.Context, id int64) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}
