package core

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Services are the components the router is wired with. All of them are built once
// at startup and shared read-only by every request.
type Services struct {
	Store       *Store
	Credentials AuthService
	Tokens      *TokenService
	Sanitizer   *ContentSanitizer
	Guard       *AuthorizationGuard
	Flash       *Flasher
	Views       ViewCounter
	Logger      logrus.FieldLogger
}

type handlers struct {
	cfg       Config
	users     UserRepository
	posts     PostRepository
	creds     AuthService
	tokens    *TokenService
	sanitizer *ContentSanitizer
	guard     *AuthorizationGuard
	flash     *Flasher
	views     ViewCounter
	store     *Store
	logger    logrus.FieldLogger
	startedAt time.Time
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, svc Services) (*gin.Engine, error) {
	if svc.Logger == nil {
		svc.Logger = discardLogger()
	}
	if svc.Views == nil {
		svc.Views = NoopViewCounter{}
	}
	if svc.Guard == nil {
		svc.Guard = NewAuthorizationGuard(svc.Store.Posts, svc.Logger)
	}
	if svc.Flash == nil {
		svc.Flash = NewFlasher(cfg, svc.Logger)
	}
	if svc.Sanitizer == nil {
		svc.Sanitizer = NewContentSanitizer()
	}

	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	h := &handlers{
		cfg:       cfg,
		users:     svc.Store.Users,
		posts:     svc.Store.Posts,
		creds:     svc.Credentials,
		tokens:    svc.Tokens,
		sanitizer: svc.Sanitizer,
		guard:     svc.Guard,
		flash:     svc.Flash,
		views:     svc.Views,
		store:     svc.Store,
		logger:    svc.Logger,
		startedAt: time.Now(),
	}

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)

	// Identity is resolved before any route logic.
	r.Use(AuthContext(svc.Tokens))

	r.GET("/healthz", h.healthz)

	r.GET("/", h.home)
	r.GET("/login", h.loginForm)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
	if cfg.RegisterRequiresLogin {
		r.POST("/register", svc.Guard.RequireAuthenticated(), h.register)
	} else {
		r.POST("/register", h.register)
	}

	authed := r.Group("/", svc.Guard.RequireAuthenticated())
	{
		authed.GET("/create-post", h.createPostForm)
		authed.POST("/create-post", h.createPost)
		authed.GET("/edit-post/:id", h.editPostForm)
		authed.POST("/edit-post/:id", h.editPost)
		authed.POST("/delete-post/:id", h.deletePost)
	}

	r.GET("/post/:id", h.showPost)

	return r, nil
}

func (h *handlers) healthz(c *gin.Context) {
	st := CollectSystemStatus(c.Request.Context(), h.store.Driver, h.store, h.views, h.startedAt)
	if !st.Healthy() {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage is not reachable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "system": st})
}

func (h *handlers) home(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		h.render(c, "homepage.html", page{})
		return
	}
	posts, err := h.posts.ListByAuthor(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", identity.UserID).Error("failed to list posts")
		h.render(c, "dashboard.html", page{Errors: userMessages(err)})
		return
	}
	h.render(c, "dashboard.html", page{Posts: posts})
}

func (h *handlers) loginForm(c *gin.Context) {
	if _, ok := IdentityFrom(c); ok {
		c.Redirect(http.StatusFound, landingPath)
		return
	}
	h.render(c, "login.html", page{})
}

func (h *handlers) login(c *gin.Context) {
	if _, ok := IdentityFrom(c); ok {
		c.Redirect(http.StatusFound, landingPath)
		return
	}
	username := c.PostForm("username")
	user, err := h.creds.Verify(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.logger.WithError(err).Error("login failed")
		}
		h.render(c, "login.html", page{Errors: userMessages(err), Username: username})
		return
	}
	if !h.startSession(c, user) {
		h.render(c, "login.html", page{Errors: []string{genericErrorMessage}, Username: username})
		return
	}
	c.Redirect(http.StatusFound, landingPath)
}

// logout only drops the cookie. The token itself stays valid until it expires.
func (h *handlers) logout(c *gin.Context) {
	clearSessionCookie(c, h.cfg)
	h.flash.Add(c, "You have been logged out.")
	c.Redirect(http.StatusFound, landingPath)
}

func (h *handlers) register(c *gin.Context) {
	username := c.PostForm("username")
	user, err := h.creds.Register(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			h.logger.WithError(err).Error("registration failed")
		}
		h.render(c, "homepage.html", page{Errors: userMessages(err), Username: username})
		return
	}
	if !h.startSession(c, user) {
		h.render(c, "homepage.html", page{Errors: []string{genericErrorMessage}, Username: username})
		return
	}
	h.flash.Add(c, "Welcome, "+user.Username+"!")
	c.Redirect(http.StatusFound, landingPath)
}

func (h *handlers) startSession(c *gin.Context, user User) bool {
	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Error("failed to sign session token")
		return false
	}
	setSessionCookie(c, h.cfg, token)
	return true
}

func (h *handlers) createPostForm(c *gin.Context) {
	h.render(c, "create-post.html", page{})
}

func (h *handlers) createPost(c *gin.Context) {
	identity, _ := IdentityFrom(c)
	in, err := readPostInput(c, h.sanitizer)
	if err != nil {
		h.render(c, "create-post.html", page{Errors: userMessages(err), Title: in.Title, Body: in.Body})
		return
	}
	post, err := h.posts.Create(c.Request.Context(), in.Title, in.Body, identity.UserID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", identity.UserID).Error("failed to create post")
		h.render(c, "create-post.html", page{Errors: userMessages(err), Title: in.Title, Body: in.Body})
		return
	}
	h.flash.Add(c, "Post created.")
	c.Redirect(http.StatusFound, postPath(post.ID))
}

func (h *handlers) editPostForm(c *gin.Context) {
	post, _, ok := h.guard.AuthorizePostMutation(c)
	if !ok {
		return
	}
	h.render(c, "edit-post.html", page{Post: post, Title: post.Title, Body: post.Body})
}

func (h *handlers) editPost(c *gin.Context) {
	post, identity, ok := h.guard.AuthorizePostMutation(c)
	if !ok {
		return
	}
	in, err := readPostInput(c, h.sanitizer)
	if err != nil {
		h.render(c, "edit-post.html", page{Errors: userMessages(err), Post: post, Title: in.Title, Body: in.Body})
		return
	}
	updated, err := h.posts.Update(c.Request.Context(), post.ID, in.Title, in.Body)
	if errors.Is(err, ErrPostNotFound) {
		// deleted by a concurrent request
		c.Redirect(http.StatusFound, landingPath)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{"post_id": post.ID, "user_id": identity.UserID}).Error("failed to update post")
		h.render(c, "edit-post.html", page{Errors: userMessages(err), Post: post, Title: in.Title, Body: in.Body})
		return
	}
	h.flash.Add(c, "Post updated.")
	c.Redirect(http.StatusFound, postPath(updated.ID))
}

func (h *handlers) deletePost(c *gin.Context) {
	post, identity, ok := h.guard.AuthorizePostMutation(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.posts.Delete(ctx, post.ID); err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			h.logger.WithError(err).WithFields(logrus.Fields{"post_id": post.ID, "user_id": identity.UserID}).Error("failed to delete post")
			h.flash.Add(c, genericErrorMessage)
		}
		c.Redirect(http.StatusFound, landingPath)
		return
	}
	if err := h.views.Forget(ctx, post.ID); err != nil {
		h.logger.WithError(err).WithField("post_id", post.ID).Warn("failed to drop view counter")
	}
	h.flash.Add(c, "Post deleted.")
	c.Redirect(http.StatusFound, landingPath)
}

func (h *handlers) showPost(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.guard.ResolvePost(ctx, c.Param("id"))
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			h.logger.WithError(err).WithField("post_id", c.Param("id")).Error("failed to load post")
		}
		c.Redirect(http.StatusFound, landingPath)
		return
	}
	author, err := h.users.FindByID(ctx, post.AuthorID)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{"post_id": post.ID, "author_id": post.AuthorID}).Warn("post author unavailable")
		c.Redirect(http.StatusFound, landingPath)
		return
	}

	p := page{
		Post:     post,
		Author:   author.Username,
		BodyHTML: safeHTML(h.sanitizer.RenderMarkup(post.Body)),
	}
	if identity, ok := IdentityFrom(c); ok {
		p.IsAuthor = RequireOwnership(post, identity)
	}
	if h.views.Enabled() {
		n, err := h.views.Increment(ctx, post.ID)
		if err != nil {
			h.logger.WithError(err).WithField("post_id", post.ID).Warn("failed to count view")
		} else {
			p.Views, p.Counted = n, true
		}
	}
	h.render(c, "single-post.html", p)
}

// postInput is a title/body pair after ingestion sanitizing.
type postInput struct {
	Title string
	Body  string
}

// readPostInput strips all markup from the submitted title and body, then checks
// that neither is empty.
func readPostInput(c *gin.Context, sanitizer *ContentSanitizer) (postInput, error) {
	in := postInput{
		Title: sanitizer.StripAll(c.PostForm("title")),
		Body:  sanitizer.StripAll(c.PostForm("body")),
	}
	verr := &ValidationError{}
	if in.Title == "" {
		verr.add(ErrInvalidPost, "You must provide a title.")
	}
	if in.Body == "" {
		verr.add(ErrInvalidPost, "You must provide content.")
	}
	if !verr.empty() {
		return in, verr
	}
	return in, nil
}

func postPath(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}
