package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"dentalshop/models"
	"encoding/pem"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var ErrTokenRevoked = errors.New("token已登出或失效")

type Claims struct {
	UserID uint   `json:"userID"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewManager(privateKey *rsa.PrivateKey) *Manager {
	return &Manager{privateKey: privateKey, publicKey: &privateKey.PublicKey}
}

// 讀取私鑰與公鑰
func LoadManager(privateKeyPath, publicKeyPath string) (*Manager, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("jwt: read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse private key: %w", err)
	}

	keyBytes, err = os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("jwt: read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse public key: %w", err)
	}

	return &Manager{privateKey: privateKey, publicKey: publicKey}, nil
}

// 生成JWT Token
func (m *Manager) GenerateToken(userID uint, role string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
}

// 驗證簽章與期限
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// 驗證JWT Token，並從資料庫檢查Token是否已登出
func (m *Manager) VerifyToken(tokenString string, db *gorm.DB) (*Claims, *models.LoginToken, error) {
	claims, err := m.ParseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	var loginToken models.LoginToken
	err = db.Where("token = ? AND user_id = ?", tokenString, claims.UserID).First(&loginToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, nil, err
	}
	return claims, &loginToken, nil
}

// 產生RSA金鑰並寫入PEM檔
func GenerateKeyPair(privateKeyPath, publicKeyPath string, bits int) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return err
	}

	files := []struct {
		path  string
		block *pem.Block
		mode  os.FileMode
	}{
		{privateKeyPath, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)}, 0o600},
		{publicKeyPath, &pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}, 0o644},
	}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(f.path, pem.EncodeToMemory(f.block), f.mode); err != nil {
			return err
		}
	}
	return nil
}
