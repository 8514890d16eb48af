package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"orbitx-go/internal/model"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/hash"
	"orbitx-go/pkg/token"
)

// ErrInvalidCredentials 表示用户名或密码错误。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ConversationDetail 是后台查看单个会话时返回的内容。
type ConversationDetail struct {
	Conversation *model.Conversation  `json:"conversation"`
	Messages     []model.HistoryEntry `json:"messages"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	Login(username, password string) (*model.TokenPair, error)
	RefreshToken(refreshToken string) (*model.TokenPair, error)
	GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error)
}

// adminService 是 AdminService 接口的实现。管理员账号来自配置，只有一个。
type adminService struct {
	username     string
	passwordHash string
	jwtManager   *token.JWTManager
	chat         ChatService
	conversation repository.ConversationStore
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(username, passwordHash string, jwtManager *token.JWTManager, chat ChatService, conversations repository.ConversationStore) AdminService {
	return &adminService{
		username:     username,
		passwordHash: passwordHash,
		jwtManager:   jwtManager,
		chat:         chat,
		conversation: conversations,
	}
}

func (s *adminService) Login(username, password string) (*model.TokenPair, error) {
	// 1. 校验用户名与密码
	if s.username == "" || s.passwordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, s.passwordHash) {
		return nil, ErrInvalidCredentials
	}

	// 2. 生成 access token 和 refresh token
	return s.issue(s.username)
}

func (s *adminService) RefreshToken(refreshToken string) (*model.TokenPair, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	// 配置中的管理员账号变更后，旧的 refresh token 失效
	if claims.Username != s.username || claims.Role != model.RoleAdmin {
		return nil, errors.New("user not found")
	}
	return s.issue(claims.Username)
}

func (s *adminService) issue(username string) (*model.TokenPair, error) {
	access, err := s.jwtManager.GenerateToken(username, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(username, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{Token: access, RefreshToken: refresh}, nil
}

func (s *adminService) GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	conv, err := s.conversation.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.chat.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: history}, nil
}
