package model

// RoleAdmin 是后台管理员的角色名。
const RoleAdmin = "ADMIN"

// TokenPair 是登录和刷新接口返回的令牌。
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
