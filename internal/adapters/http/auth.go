package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "LuckySessions"
	userKey     = "user_id"
	linkIssuer  = "luckyclick"
)

var errInvalidLink = errors.New("invalid link token")

// IssueLinkToken signs a short lived token binding a session to user.
// The chat front end hands it to the player, who redeems it at /auth/link.
func IssueLinkToken(secret string, user domain.UserID, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    linkIssuer,
		Subject:   user.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func verifyLinkToken(secret, token string, now time.Time) (domain.UserID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return 0, errInvalidLink
	}
	id, err := domain.ParseUserID(claims.Subject)
	if err != nil {
		return 0, errInvalidLink
	}
	return id, nil
}

func sessionMiddleware(secret string) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionName, store)
}

// UserMiddleware admits only sessions bound through /auth/link.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := sessions.Default(c).Get(userKey).(int64)
		if !ok || raw <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userKey, domain.UserID(raw))
		c.Next()
	}
}

func userOf(c *gin.Context) domain.UserID {
	return c.MustGet(userKey).(domain.UserID)
}

type authHandlers struct {
	secret string
	now    func() time.Time
}

func (a *authHandlers) link(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badRequest(c)
		return
	}
	user, err := verifyLinkToken(a.secret, req.Token, a.now())
	if err != nil {
		log.Warn().Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("rejected link token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	s := sessions.Default(c)
	s.Set(userKey, int64(user))
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", user.String()).Msg("session linked")
	c.JSON(http.StatusOK, gin.H{"user": strconv.FormatInt(int64(user), 10)})
}

func (a *authHandlers) logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session clear failed")
	}
	c.Status(http.StatusNoContent)
}
