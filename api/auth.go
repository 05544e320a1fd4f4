package api

import (
	"fmt"
	"net/http"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/greenmesh/greenmesh/x/shared/attest"
)

// TokenIssuer is the iss claim of every token.
const TokenIssuer = "greenmesh-api"

// LoginWindow bounds the age of a signed login statement.
const LoginWindow = 5 * time.Minute

// AuthService issues and checks bearer tokens. A token binds the bearer to
// one ledger address; roles are checked by the ledger itself.
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(jwtSecret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{jwtSecret: jwtSecret, ttl: ttl, now: time.Now}
}

// Claims represents JWT claims
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// GenerateToken issues a token for addr.
func (as *AuthService) GenerateToken(addr sdk.AccAddress) (string, time.Time, error) {
	if addr.Empty() {
		return "", time.Time{}, fmt.Errorf("address is required")
	}
	issued := as.now()
	expires := issued.Add(as.ttl)

	claims := &Claims{
		Address: addr.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(issued),
			Issuer:    TokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(as.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expires, nil
}

// ValidateToken validates a JWT token and returns the claims
func (as *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return as.jwtSecret, nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithTimeFunc(as.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if _, err := sdk.AccAddressFromBech32(claims.Address); err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}
	return claims, nil
}

// VerifyLogin checks that req is a fresh statement signed by the key of req.Address.
func (as *AuthService) VerifyLogin(req LoginRequest) (sdk.AccAddress, error) {
	addr, err := sdk.AccAddressFromBech32(req.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	signedAt := time.Unix(req.Timestamp, 0)
	if age := as.now().Sub(signedAt); age > LoginWindow || age < -LoginWindow {
		return nil, fmt.Errorf("login statement outside the %s window", LoginWindow)
	}
	hash, err := attest.MessageHash(addr, LoginStatement{Issuer: TokenIssuer, Timestamp: req.Timestamp}, nil)
	if err != nil {
		return nil, err
	}
	signer, err := attest.RecoverSigner(hash, req.Signature)
	if err != nil {
		return nil, err
	}
	if !signer.Equals(addr) {
		return nil, fmt.Errorf("statement signed by %s", signer)
	}
	return addr, nil
}

// SignLogin builds a login request for the holder of key.
func SignLogin(key *secp256k1.PrivateKey, at time.Time) (LoginRequest, error) {
	addr := attest.Address(key.PubKey())
	stmt := LoginStatement{Issuer: TokenIssuer, Timestamp: at.Unix()}
	sig, err := attest.SignStatement(key, addr, stmt, nil)
	if err != nil {
		return LoginRequest{}, err
	}
	return LoginRequest{Address: addr.String(), Timestamp: stmt.Timestamp, Signature: sig}, nil
}

// handleLogin exchanges a signed login statement for a bearer token.
func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	addr, err := s.authService.VerifyLogin(req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "Login rejected",
			Code:    "UNAUTHENTICATED",
			Details: err.Error(),
		})
		return
	}
	token, expires, err := s.authService.GenerateToken(addr)
	if err != nil {
		writeError(c, err)
		return
	}
	s.logger.Info("token issued", "address", addr.String())
	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}

// caller returns the authenticated address.
func caller(c *gin.Context) sdk.AccAddress {
	addr, err := sdk.AccAddressFromBech32(c.GetString(ctxKeyAddress))
	if err != nil {
		// AuthMiddleware only stores validated addresses.
		panic(fmt.Sprintf("caller without authenticated address: %v", err))
	}
	return addr
}

// handleWhoAmI returns the address bound to the bearer token.
func (s *Server) handleWhoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": c.GetString(ctxKeyAddress)})
}

// handleRefreshToken reissues the bearer token with a fresh expiry.
func (s *Server) handleRefreshToken(c *gin.Context) {
	token, expires, err := s.authService.GenerateToken(caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}
