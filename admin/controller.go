package admin

import (
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/darvin/datastore-admin/auth"
	"github.com/darvin/datastore-admin/datastore"
	"github.com/darvin/datastore-admin/forms"
	"github.com/darvin/datastore-admin/schema"
)

// Mount attaches the admin routes under the configured prefix and installs
// a NoRoute fallback that renders the 404 template for unmatched admin
// paths. Every action requires the admin role.
func (a *Admin) Mount(router *gin.Engine) {
	group := router.Group(a.opts.Prefix)
	group.Use(a.requireAdmin())

	group.GET("/", a.handleIndex)
	group.GET("/:model/list/", a.handleList)
	group.GET("/:model/export/", a.handleExport)
	group.GET("/:model/new/", a.handleNewGet)
	group.POST("/:model/new/", a.handleNewPost)
	group.GET("/:model/edit/:key/", a.handleEditGet)
	group.POST("/:model/edit/:key/", a.handleEditPost)
	group.GET("/:model/delete/:key/", a.handleDelete)
	group.GET("/:model/get_blob_contents/:field/:key/", a.handleBlob)

	router.NoRoute(a.handleNoRoute)
}

// requireAdmin enforces the admin role on every action. Unauthenticated
// browsers are sent to the login flow on GET; everything else is forbidden.
func (a *Admin) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := a.authn.Principal(c.Request)
		if !ok {
			if c.Request.Method == http.MethodGet {
				c.Redirect(http.StatusFound, a.authn.LoginURL(c.Request.URL.RequestURI()))
				c.Abort()
				return
			}
			a.forbidden(c)
			return
		}
		if !principal.HasRole(auth.RoleAdmin) {
			a.forbidden(c)
			return
		}
		c.Next()
	}
}

type navView struct {
	Models    []string
	URLPrefix string
}

func (a *Admin) nav() navView {
	return navView{Models: a.registry.ModelNames(), URLPrefix: a.opts.Prefix}
}

func (a *Admin) handleIndex(c *gin.Context) {
	a.render(c, http.StatusOK, "index.html", gin.H{"Nav": a.nav()})
}

type listRow struct {
	Key    string
	Values []*PropertyWrapper
}

func (a *Admin) handleList(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	page, items, err := Paginate(c.Request.Context(), a.store, ma.baseQuery(), a.opts.ItemsPerPage, c.Query("page"))
	if err != nil {
		a.serverError(c, err)
		return
	}
	rows := make([]listRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, listRow{
			Key:    item.Key,
			Values: a.attachValues(c.Request.Context(), ma.listProps, item),
		})
	}
	a.render(c, http.StatusOK, "model_item_list.html", gin.H{
		"Nav":            a.nav(),
		"ModuleTitle":    ma.name,
		"ListProperties": ma.listProps,
		"Items":          rows,
		"Page":           page,
	})
}

type fieldView struct {
	Label  string
	Widget template.HTML
	Error  string
}

func (a *Admin) editContext(c *gin.Context, ma *modelAdmin, form *forms.Form, item *datastore.Entity) gin.H {
	fields := make([]fieldView, 0, len(form.Fields))
	for _, field := range form.Fields {
		view := fieldView{Label: field.Label(), Widget: form.RenderWidget(field)}
		if err := form.FieldError(field.Name()); err != nil {
			view.Error = err.Error()
		}
		fields = append(fields, view)
	}
	ctx := gin.H{
		"Nav":         a.nav(),
		"ModuleTitle": ma.name,
		"Fields":      fields,
		"Enctype":     form.Enctype,
	}
	if item != nil {
		ctx["ItemKey"] = item.Key
		ctx["Action"] = a.opts.Prefix + "/" + ma.name + "/edit/" + item.Key + "/"
		ctx["ReadonlyProperties"] = a.attachValues(c.Request.Context(), ma.readonlyProps, *item)
	} else {
		ctx["Action"] = a.opts.Prefix + "/" + ma.name + "/new/"
		ctx["ReadonlyProperties"] = ma.readonlyProps
	}
	return ctx
}

func (a *Admin) handleNewGet(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	form, err := ma.builder.Form(c.Request.Context(), formEnv{a}, nil)
	if err != nil {
		a.serverError(c, err)
		return
	}
	a.render(c, http.StatusOK, "model_item_edit.html", a.editContext(c, ma, form, nil))
}

func (a *Admin) handleNewPost(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	form, err := ma.builder.Form(c.Request.Context(), formEnv{a}, nil)
	if err != nil {
		a.serverError(c, err)
		return
	}
	if form.Bind(c.Request.Context(), a.requestData(c)) {
		item, err := form.Save(c.Request.Context(), a.store)
		if err != nil {
			a.serverError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, a.opts.Prefix+"/"+ma.name+"/edit/"+item.Key+"/")
		return
	}
	// Re-render with messages and the entered values preserved.
	a.render(c, http.StatusOK, "model_item_edit.html", a.editContext(c, ma, form, nil))
}

func (a *Admin) handleEditGet(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	item, ok := a.safeGetItem(c, ma)
	if !ok {
		return
	}
	form, err := ma.builder.Form(c.Request.Context(), formEnv{a}, &item)
	if err != nil {
		a.serverError(c, err)
		return
	}
	a.render(c, http.StatusOK, "model_item_edit.html", a.editContext(c, ma, form, &item))
}

func (a *Admin) handleEditPost(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	item, ok := a.safeGetItem(c, ma)
	if !ok {
		return
	}
	form, err := ma.builder.Form(c.Request.Context(), formEnv{a}, &item)
	if err != nil {
		a.serverError(c, err)
		return
	}
	if form.Bind(c.Request.Context(), a.requestData(c)) {
		saved, err := form.Save(c.Request.Context(), a.store)
		if err != nil {
			a.serverError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, a.opts.Prefix+"/"+ma.name+"/edit/"+saved.Key+"/")
		return
	}
	a.render(c, http.StatusOK, "model_item_edit.html", a.editContext(c, ma, form, &item))
}

func (a *Admin) handleDelete(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	if _, ok := a.safeGetItem(c, ma); !ok {
		return
	}
	if err := a.store.Delete(c.Request.Context(), ma.name, c.Param("key")); err != nil {
		a.notFound(c)
		return
	}
	c.Redirect(http.StatusFound, a.opts.Prefix+"/"+ma.name+"/list/")
}

func (a *Admin) handleBlob(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	item, ok := a.safeGetItem(c, ma)
	if !ok {
		return
	}
	field := c.Param("field")
	data, ok := item.Props[field].([]byte)
	if !ok || len(data) == 0 {
		a.notFound(c)
		return
	}
	contentType := "application/octet-stream"
	if meta, ok := schema.DecodeBlobMeta(item, field); ok {
		if meta.ContentType != "" {
			contentType = meta.ContentType
		}
		c.Header("Content-Disposition", `inline; filename="`+meta.FileName+`"`)
	}
	c.Data(http.StatusOK, contentType, data)
}

// safeGetItem fetches the record addressed by the :key parameter. Malformed
// keys and missing records are indistinguishable: both end the request with
// a 404.
func (a *Admin) safeGetItem(c *gin.Context, ma *modelAdmin) (datastore.Entity, bool) {
	item, err := a.store.Get(c.Request.Context(), ma.name, c.Param("key"))
	if err != nil {
		a.notFound(c)
		return datastore.Entity{}, false
	}
	return item, true
}

// requestData collects submitted values and uploads for form binding.
func (a *Admin) requestData(c *gin.Context) forms.Data {
	r := c.Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(a.opts.MaxUploadSize + (1 << 20)); err != nil {
			a.logger.Warn("multipart parse failed", "error", err)
		}
		files := make(map[string]*multipart.FileHeader)
		if r.MultipartForm != nil {
			for name, headers := range r.MultipartForm.File {
				if len(headers) > 0 {
					files[name] = headers[0]
				}
			}
		}
		return forms.Data{Values: r.PostForm, Files: files}
	}
	if err := r.ParseForm(); err != nil {
		a.logger.Warn("form parse failed", "error", err)
	}
	return forms.Data{Values: r.PostForm}
}

func (a *Admin) handleNoRoute(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, a.opts.Prefix+"/") || c.Request.URL.Path == a.opts.Prefix {
		a.notFound(c)
		return
	}
	c.String(http.StatusNotFound, "404 page not found")
}

func (a *Admin) render(c *gin.Context, status int, name string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := a.renderer.Render(c.Writer, name, data); err != nil {
		a.logger.Error("template render failed", "template", name, "error", err)
	}
}

func (a *Admin) notFound(c *gin.Context) {
	a.render(c, http.StatusNotFound, "404.html", gin.H{"Nav": a.nav()})
	c.Abort()
}

func (a *Admin) forbidden(c *gin.Context) {
	_ = c.Error(ErrForbidden)
	a.render(c, http.StatusForbidden, "403.html", gin.H{"Nav": a.nav()})
	c.Abort()
}

func (a *Admin) serverError(c *gin.Context, err error) {
	a.logger.Error("admin request failed", "path", c.Request.URL.Path, "error", err)
	a.render(c, http.StatusInternalServerError, "500.html", gin.H{"Nav": a.nav()})
	c.Abort()
}
