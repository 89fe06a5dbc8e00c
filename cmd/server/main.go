package main

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/darvin/datastore-admin/admin"
	"github.com/darvin/datastore-admin/auth"
	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/schema"
)

var (
	flagAddr       string
	flagDBPath     string
	flagSessionTTL time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "datastore-admin",
		Short: "Serve the generated admin interface over a demo schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	root.Flags().StringVar(&flagDBPath, "db", "", "bolt database path (empty for in-memory)")
	root.Flags().DurationVar(&flagSessionTTL, "session-ttl", 12*time.Hour, "admin session lifetime")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}()

	sessions := auth.NewManager(flagSessionTTL, "/login")

	a, err := admin.New(admin.Config{
		Store:   store,
		Auth:    sessions,
		Logger:  logger,
		Options: admin.DefaultOptions(),
	})
	if err != nil {
		return err
	}
	if err := a.Register(demoModels()...); err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	mountLogin(router, sessions)
	a.Mount(router)
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/admin/")
	})

	srv := &http.Server{
		Addr:              flagAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", flagAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore() (datastore.Store, error) {
	if flagDBPath == "" {
		return datastore.NewMemStore(), nil
	}
	return datastore.NewBoltStore(&datastore.BoltStoreOptions{Path: flagDBPath})
}

// mountLogin installs a minimal login flow that grants the admin role to
// anyone who submits a name. Replace it with a real identity provider
// before exposing the server.
func mountLogin(router *gin.Engine, sessions *auth.Manager) {
	router.GET("/login", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(c.Writer, `<!DOCTYPE html>
<html><body>
<form method="post" action="/login">
  <input type="hidden" name="next" value="%s">
  <label>Name <input type="text" name="name"></label>
  <button type="submit">Sign in</button>
</form>
</body></html>`, html.EscapeString(c.Query("next")))
	})
	router.POST("/login", func(c *gin.Context) {
		name := c.PostForm("name")
		if name == "" {
			name = "admin"
		}
		session, err := sessions.Issue(name, []string{auth.RoleAdmin})
		if err != nil {
			c.String(http.StatusInternalServerError, "login failed")
			return
		}
		c.SetCookie(auth.SessionCookie, session.Token, int(flagSessionTTL.Seconds()), "/", "", false, true)
		next := c.PostForm("next")
		if next == "" || next[0] != '/' {
			next = "/admin/"
		}
		c.Redirect(http.StatusSeeOther, next)
	})
}

func demoModels() []admin.ModelAdmin {
	author := &schema.Model{
		Kind:            "author",
		DisplayProperty: "name",
		Properties: []schema.Property{
			{Name: "name", Kind: schema.String, Required: true},
			{Name: "bio", Kind: schema.Text},
			{Name: "rating", Kind: schema.Float},
			{Name: "active", Kind: schema.Boolean},
			{Name: "joined", Kind: schema.Date},
		},
	}
	post := &schema.Model{
		Kind:            "post",
		DisplayProperty: "title",
		Properties: []schema.Property{
			{Name: "title", Kind: schema.String, Required: true},
			{Name: "body", Kind: schema.Text},
			{Name: "views", Kind: schema.Integer},
			{Name: "published_at", Kind: schema.DateTime},
			{Name: "category", Kind: schema.String, Choices: []string{"news", "essay", "review"}},
			{Name: "tags", Kind: schema.StringList},
			{Name: "author", Kind: schema.Reference, ReferenceKind: "author", Required: true},
			{Name: "reviewers", Kind: schema.ManyToMany, ReferenceKind: "author"},
		},
	}
	attachment := &schema.Model{
		Kind:            "attachment",
		DisplayProperty: "title",
		Properties: []schema.Property{
			{Name: "title", Kind: schema.String, Required: true},
			{Name: "post", Kind: schema.Reference, ReferenceKind: "post"},
			{Name: "file", Kind: schema.Blob},
			{Name: "uploaded_at", Kind: schema.DateTime},
		},
	}
	return []admin.ModelAdmin{
		{
			Model:      author,
			ListFields: []string{"name", "rating", "active", "joined"},
			EditFields: []string{"name", "bio", "rating", "active", "joined"},
			ListOrder:  "name",
		},
		{
			Model:          post,
			ListFields:     []string{"title", "author", "category", "published_at"},
			EditFields:     []string{"title", "body", "published_at", "category", "tags", "author", "reviewers"},
			ReadonlyFields: []string{"views"},
			ListOrder:      "-published_at",
		},
		{
			Model:      attachment,
			ListFields: []string{"title", "post", "uploaded_at"},
			EditFields: []string{"title", "post", "file", "uploaded_at"},
		},
	}
}
