package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

// Claims carried by access tokens. The registered ID is used for revocation.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// User is the public view of an operator account
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type AuthModule struct {
	db        *pgxpool.Pool
	redis     *redis.Client
	JWTSecret string

	now func() time.Time
}

func NewAuthModule(db *pgxpool.Pool, redis *redis.Client, JWTSecret string) *AuthModule {
	return &AuthModule{
		db:        db,
		redis:     redis,
		JWTSecret: JWTSecret,
		now:       time.Now,
	}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// EnsureUser creates the account if the username is not taken yet
func (a *AuthModule) EnsureUser(ctx context.Context, username, password string) error {
	if password == "" {
		log.Printf("AUTH: No password configured for %s, skipping account seed", username)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tag, err := a.db.Exec(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING",
		username, string(hashedPassword),
	)
	if err != nil {
		return fmt.Errorf("seed user %s: %w", username, err)
	}
	if tag.RowsAffected() > 0 {
		log.Printf("AUTH: Created user %s", username)
	}
	return nil
}

// IssueToken signs an access token for the user
func (a *AuthModule) IssueToken(userID int64, username string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthModule) authenticateUser(ctx context.Context, username string, password string) (int64, error) {
	var userID int64
	var passwordHash string
	err := a.db.QueryRow(ctx, "SELECT id, password_hash FROM users WHERE username = $1", username).Scan(&userID, &passwordHash)
	if err != nil {
		return 0, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return userID, nil
}

func (a *AuthModule) LoginWithJWT(ctx context.Context, username, password string) (string, error) {
	userID, err := a.authenticateUser(ctx, username, password)
	if err != nil {
		return "", err
	}

	return a.IssueToken(userID, username)
}

// ValidateTokenJWT checks signature, expiry and revocation of a token
func (a *AuthModule) ValidateTokenJWT(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsedToken.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	if a.redis != nil && claims.ID != "" {
		n, err := a.redis.Exists(ctx, revokedKey(claims.ID)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}
	return claims, nil
}

// LogoutJWT revokes the token until it would have expired anyway
func (a *AuthModule) LogoutJWT(ctx context.Context, claims *Claims) error {
	if a.redis == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, revokedKey(claims.ID), strconv.FormatInt(claims.UserID, 10), ttl).Err()
}

// GetUser returns the account behind a token
func (a *AuthModule) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := a.db.QueryRow(ctx, "SELECT id, username FROM users WHERE id = $1", userID).Scan(&u.ID, &u.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword changes the user's password after verifying the old password
func (a *AuthModule) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	var passwordHash string
	err := a.db.QueryRow(ctx, "SELECT password_hash FROM users WHERE id = $1", userID).Scan(&passwordHash)
	if err != nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(oldPassword)); err != nil {
		return errors.New("invalid old password")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = a.db.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", string(hashedPassword), userID)
	return err
}
