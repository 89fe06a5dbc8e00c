// Package admin generates an administrative web interface for registered
// data models: paginated list views, widget-based create/edit forms, blob
// download, and role-gated routing, all served over a pluggable document
// store.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/darvin/datastore-admin/auth"
	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/forms"
	"github.com/darvin/datastore-admin/schema"
)

var (
	// ErrNotFound covers unknown models, malformed keys, missing records
	// and unmatched admin routes alike.
	ErrNotFound = errors.New("admin: not found")

	// ErrForbidden marks requests whose principal lacks the admin role.
	ErrForbidden = errors.New("admin: forbidden")
)

// Authenticator resolves the requesting principal and builds the login
// redirect for unauthenticated browsers. auth.Manager satisfies it.
type Authenticator interface {
	Principal(r *http.Request) (*auth.Principal, bool)
	LoginURL(dest string) string
}

// Options control the mounted interface.
type Options struct {
	// Prefix is the mount path every generated link and redirect is built
	// under, so the admin UI is relocatable.
	Prefix string

	// ItemsPerPage sizes list view pages. Zero is invalid configuration.
	ItemsPerPage int `validate:"min=1"`

	// MaxUploadSize bounds blob uploads in bytes.
	MaxUploadSize int64 `validate:"min=1"`
}

// DefaultOptions returns the stock configuration: mounted at /admin, 50
// items per list page, 1 MiB upload cap.
func DefaultOptions() Options {
	return Options{Prefix: "/admin", ItemsPerPage: 50, MaxUploadSize: forms.DefaultMaxUploadSize}
}

// Config wires the admin to its collaborators.
type Config struct {
	Store    datastore.Store
	Auth     Authenticator
	Renderer Renderer     // optional, defaults to the embedded templates
	Logger   *slog.Logger // optional, defaults to slog.Default()
	Options  Options
}

// Admin is the controller for one mounted admin interface.
type Admin struct {
	store    datastore.Store
	authn    Authenticator
	registry *Registry
	renderer Renderer
	logger   *slog.Logger
	opts     Options
}

// New validates the configuration and constructs an Admin with an empty
// registry. Invalid options fail here, at startup, never at request time.
func New(cfg Config) (*Admin, error) {
	if cfg.Store == nil {
		return nil, errors.New("admin: a datastore is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("admin: an authenticator is required")
	}
	if err := validator.New().Struct(cfg.Options); err != nil {
		return nil, errors.Wrap(err, "admin: invalid options")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		var err error
		renderer, err = NewTemplateRenderer()
		if err != nil {
			return nil, err
		}
	}
	return &Admin{
		store:    cfg.Store,
		authn:    cfg.Auth,
		registry: NewRegistry(logger),
		renderer: renderer,
		logger:   logger,
		opts:     Options{
			Prefix:        strings.TrimSuffix(cfg.Options.Prefix, "/"),
			ItemsPerPage:  cfg.Options.ItemsPerPage,
			MaxUploadSize: cfg.Options.MaxUploadSize,
		},
	}, nil
}

// Registry returns the model registry backing this admin.
func (a *Admin) Registry() *Registry {
	return a.registry
}

// ModelAdmin configures how one model is exposed in the interface.
type ModelAdmin struct {
	Model *schema.Model

	// ListFields appear as columns of the list view, in order.
	ListFields []string

	// EditFields are exposed as form inputs on the create and edit views.
	EditFields []string

	// ReadonlyFields are shown with their current values on the edit view.
	ReadonlyFields []string

	// ListOrder is an ordering expression for the list view, e.g.
	// "-updated_at, title".
	ListOrder string

	// ListFilters restrict the list view's base query.
	ListFilters []datastore.FilterClause
}

// Register compiles and registers model configurations. It is called during
// startup, before the admin serves requests; registering the same model
// twice makes the last configuration the active one.
func (a *Admin) Register(configs ...ModelAdmin) error {
	for _, cfg := range configs {
		compiled, err := a.compile(cfg)
		if err != nil {
			return err
		}
		a.registry.register(compiled)
	}
	return nil
}

func (a *Admin) compile(cfg ModelAdmin) (*modelAdmin, error) {
	if cfg.Model == nil {
		return nil, errors.New("admin: model admin without a model")
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	listProps, err := extractProperties(cfg.Model, cfg.ListFields)
	if err != nil {
		return nil, err
	}
	readonlyProps, err := extractProperties(cfg.Model, cfg.ReadonlyFields)
	if err != nil {
		return nil, err
	}
	builder, err := forms.NewBuilder(cfg.Model, cfg.EditFields, forms.Options{
		MaxUploadSize: a.opts.MaxUploadSize,
	})
	if err != nil {
		return nil, err
	}
	return &modelAdmin{
		name:          cfg.Model.Kind,
		model:         cfg.Model,
		listProps:     listProps,
		readonlyProps: readonlyProps,
		orders:        datastore.ParseOrder(cfg.ListOrder),
		filters:       cfg.ListFilters,
		builder:       builder,
	}, nil
}

// modelAdmin is the compiled per-model configuration: immutable after
// registration, shared read-only across requests.
type modelAdmin struct {
	name          string
	model         *schema.Model
	listProps     []*PropertyWrapper
	readonlyProps []*PropertyWrapper
	orders        []datastore.OrderClause
	filters       []datastore.FilterClause
	builder       *forms.Builder
}

func (m *modelAdmin) baseQuery() datastore.Query {
	return datastore.Query{Kind: m.name, Filters: m.filters, Orders: m.orders}
}

// Registry maps model names to their compiled configurations. It is
// populated during startup registration and read-only while serving, so no
// locking is needed at request time.
type Registry struct {
	admins map[string]*modelAdmin
	logger *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{admins: make(map[string]*modelAdmin), logger: logger}
}

func (r *Registry) register(ma *modelAdmin) {
	if _, exists := r.admins[ma.name]; exists {
		r.logger.Warn("overwriting registered model admin", "model", ma.name)
	}
	r.admins[ma.name] = ma
}

// get resolves a model admin by model name. The compiled configuration is
// internal, so lookups stay package-private; embedders enumerate models
// through ModelNames.
func (r *Registry) get(name string) (*modelAdmin, error) {
	ma, ok := r.admins[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "model %s is not registered", name)
	}
	return ma, nil
}

// ModelNames lists registered model names in stable lexicographic order.
func (r *Registry) ModelNames() []string {
	names := make([]string, 0, len(r.admins))
	for name := range r.admins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formEnv adapts the admin's registry, store and URL scheme to what form
// construction needs.
type formEnv struct {
	a *Admin
}

func (e formEnv) ReferenceChoices(ctx context.Context, kind string) ([]forms.Choice, error) {
	ma, err := e.a.registry.get(kind)
	if err != nil {
		return nil, err
	}
	entities, err := e.a.store.Run(ctx, datastore.Query{Kind: kind})
	if err != nil {
		return nil, err
	}
	choices := make([]forms.Choice, 0, len(entities))
	for _, entity := range entities {
		choices = append(choices, forms.Choice{Value: entity.Key, Label: ma.model.Display(entity)})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Label < choices[j].Label })
	return choices, nil
}

func (e formEnv) HasReference(ctx context.Context, kind, key string) bool {
	_, err := e.a.store.Get(ctx, kind, key)
	return err == nil
}

func (e formEnv) AddNewURL(kind string) string {
	return e.a.opts.Prefix + "/" + kind + "/new/"
}

func (e formEnv) BlobDownloadURL(modelKind, field, key string) string {
	return e.a.opts.Prefix + "/" + modelKind + "/get_blob_contents/" + field + "/" + key + "/"
}
