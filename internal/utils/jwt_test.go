package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", time.Hour)
}

// 测试签发与验证
func (suite *JWTTestSuite) TestGenerateAndValidate() {
	token, expiresAt, err := suite.manager.GenerateToken("player-1", "Alice")
	suite.NoError(err)
	suite.NotEmpty(token)
	suite.WithinDuration(time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal("player-1", claims.PlayerID)
	suite.Equal("Alice", claims.PlayerName)
	suite.Equal("player-1", claims.Subject)
	suite.Equal(tokenIssuer, claims.Issuer)
}

// 测试缺少玩家ID
func (suite *JWTTestSuite) TestGenerateRequiresPlayerID() {
	_, _, err := suite.manager.GenerateToken("", "Alice")
	suite.Error(err)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestExpiredToken() {
	token, _, err := suite.manager.GenerateToken("player-1", "Alice")
	suite.Require().NoError(err)

	suite.manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
}

// 测试错误密钥
func (suite *JWTTestSuite) TestWrongSecret() {
	other := NewJWTManager("another-secret", time.Hour)
	token, _, err := other.GenerateToken("player-1", "Alice")
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试格式错误的令牌
func (suite *JWTTestSuite) TestMalformedToken() {
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := suite.manager.ValidateToken(token)
		suite.ErrorIs(err, ErrInvalidToken, token)
	}
}

// 测试签名算法不匹配
func (suite *JWTTestSuite) TestUnexpectedSigningMethod() {
	claims := &PlayerClaims{
		PlayerID: "player-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试其他签发方的令牌
func (suite *JWTTestSuite) TestWrongIssuer() {
	claims := &PlayerClaims{
		PlayerID: "player-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "other-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

func (suite *JWTTestSuite) TestExpiry() {
	suite.Equal(time.Hour, suite.manager.Expiry())
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
