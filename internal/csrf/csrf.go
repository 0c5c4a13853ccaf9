package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// HeaderName is the request header carrying the anti-forgery token.
const HeaderName = "X-CSRF-Token"

const sessionKey = "csrf_token"

// Token returns the session's anti-forgery token, generating and persisting
// one if the session does not have a token yet.
func Token(store *session.Store, c *fiber.Ctx) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", err
	}

	if tok, ok := sess.Get(sessionKey).(string); ok && tok != "" {
		return tok, nil
	}

	tok, err := generate()
	if err != nil {
		return "", err
	}

	sess.Set(sessionKey, tok)
	if err := sess.Save(); err != nil {
		return "", err
	}

	return tok, nil
}

func generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Verify reports whether the supplied token matches the session token.
// Empty values never match.
func Verify(sessionToken, supplied string) bool {
	if sessionToken == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sessionToken), []byte(supplied)) == 1
}

// IssueHandler returns the session token to the client so it can be attached
// to state-changing requests.
func IssueHandler(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, err := Token(store, c)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to issue token",
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"token": tok},
		})
	}
}

// Protect rejects requests whose X-CSRF-Token header does not match the
// session token, before any other processing happens.
func Protect(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return reject(c)
		}
		tok, _ := sess.Get(sessionKey).(string)
		if !Verify(tok, c.Get(HeaderName)) {
			return reject(c)
		}
		return c.Next()
	}
}

func reject(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success": false,
		"message": "CSRF Token Mismatch",
	})
}
