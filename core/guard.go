package core

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// landingPath is where every authorization and not-found failure ends up.
const landingPath = "/"

// AuthorizationGuard gates actions that need a signed-in user or post ownership.
// Failures redirect to the landing page without saying why.
type AuthorizationGuard struct {
	posts  PostRepository
	logger logrus.FieldLogger
}

func NewAuthorizationGuard(posts PostRepository, logger logrus.FieldLogger) *AuthorizationGuard {
	if logger == nil {
		logger = discardLogger()
	}
	return &AuthorizationGuard{posts: posts, logger: logger}
}

// RequireAuthenticated redirects anonymous requests to the landing page.
func (g *AuthorizationGuard) RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			c.Redirect(http.StatusFound, landingPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOwnership reports whether identity is the post's author.
func RequireOwnership(post *Post, identity SessionClaims) bool {
	return post != nil && identity.UserID > 0 && post.AuthorID == identity.UserID
}

// ResolvePost loads a post by its path id. Unparseable ids are ErrPostNotFound.
func (g *AuthorizationGuard) ResolvePost(ctx context.Context, rawID string) (*Post, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrPostNotFound
	}
	return g.posts.Get(ctx, id)
}

// CheckPostMutation resolves rawID and checks that identity owns the post. It
// returns ErrPostNotFound, ErrNotOwner or a storage error.
func (g *AuthorizationGuard) CheckPostMutation(ctx context.Context, rawID string, identity SessionClaims) (*Post, error) {
	post, err := g.ResolvePost(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !RequireOwnership(post, identity) {
		return nil, ErrNotOwner
	}
	return post, nil
}

// AuthorizePostMutation resolves the :id post and checks that the caller owns it.
// On any failure it logs the internal reason, redirects home and returns false.
func (g *AuthorizationGuard) AuthorizePostMutation(c *gin.Context) (*Post, SessionClaims, bool) {
	identity, ok := IdentityFrom(c)
	if !ok {
		g.deny(c, "anonymous", logrus.Fields{})
		return nil, SessionClaims{}, false
	}
	post, err := g.CheckPostMutation(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		fields := logrus.Fields{"post_id": c.Param("id"), "user_id": identity.UserID}
		switch {
		case errors.Is(err, ErrPostNotFound):
			g.deny(c, "not_found", fields)
		case errors.Is(err, ErrNotOwner):
			g.deny(c, "not_owner", fields)
		default:
			fields[logrus.ErrorKey] = err
			g.deny(c, "storage_error", fields)
		}
		return nil, SessionClaims{}, false
	}
	return post, identity, true
}

func (g *AuthorizationGuard) deny(c *gin.Context, reason string, fields logrus.Fields) {
	g.logger.WithFields(fields).WithField("reason", reason).WithField("path", c.Request.URL.Path).Info("post action denied")
	c.Redirect(http.StatusFound, landingPath)
	c.Abort()
}
