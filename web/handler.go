// Package web serves the dashboard pages on top of a dashboard.Controller.
package web

import (
	"embed"
	"html/template"
	"menudash/dashboard"
	"menudash/model"
	"menudash/utils"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templates embed.FS

type Handler struct {
	dash *dashboard.Controller
	log  *zap.Logger
}

func NewHandler(dash *dashboard.Controller, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{dash: dash, log: log}
}

// NewRouter returns the dashboard engine with every page route registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLogger(h.log))
	router.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	router.GET("/", h.Index)
	router.POST("/modal/add", h.OpenAdd)
	router.POST("/modal/add/close", h.CloseAdd)
	router.POST("/modal/edit/close", h.CloseEdit)
	router.POST("/foods", h.Add)
	router.POST("/foods/import", h.Import)
	router.POST("/foods/:id/edit", h.OpenEdit)
	router.POST("/foods/:id/update", h.Update)
	router.POST("/foods/:id/toggle", h.Toggle)
	router.POST("/foods/:id/delete", h.Delete)
	router.POST("/notices/:id/retry", h.Retry)
	router.POST("/notices/:id/dismiss", h.Dismiss)
	return router
}

func (h *Handler) Index(c *gin.Context) {
	if !h.dash.Loaded() {
		// startup load failed; try again on the next page view
		_ = h.dash.Load(c.Request.Context())
	}
	c.HTML(http.StatusOK, "dashboard.html", h.dash.Snapshot())
}

func backToDashboard(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) OpenAdd(c *gin.Context) {
	h.dash.OpenAddModal()
	backToDashboard(c)
}

func (h *Handler) CloseAdd(c *gin.Context) {
	h.dash.CloseAddModal()
	backToDashboard(c)
}

func (h *Handler) CloseEdit(c *gin.Context) {
	h.dash.CloseEditModal()
	backToDashboard(c)
}

func (h *Handler) Add(c *gin.Context) {
	price, err := parsePrice(c.PostForm("price"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid price")
		return
	}
	h.dash.Add(c.Request.Context(), model.NewFoodItem{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       price,
		Image:       c.PostForm("image"),
	})
	backToDashboard(c)
}

func (h *Handler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.String(http.StatusBadRequest, "workbook file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.String(http.StatusBadRequest, "unable to open workbook")
		return
	}
	defer file.Close()

	h.dash.Import(c.Request.Context(), fileHeader.Filename, file)
	backToDashboard(c)
}

func (h *Handler) OpenEdit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.dash.OpenEditModal(uint(id)); err != nil {
		h.log.Debug("open edit ignored", zap.Error(err))
	}
	backToDashboard(c)
}

// Update submits the edit form. Description and image are taken as posted,
// so an empty input clears them. A blank name or price keeps the stored
// value. A form for a food other than the current edit target is ignored.
func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if target, editing := h.dash.Editing(); !editing || target.ID != uint(id) {
		h.log.Debug("stale edit form ignored", zap.Uint64("food_id", id))
		backToDashboard(c)
		return
	}

	var draft model.EditDraft
	if v := strings.TrimSpace(c.PostForm("name")); v != "" {
		draft.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		draft.Description = &v
	}
	if v, ok := c.GetPostForm("image"); ok {
		draft.Image = &v
	}
	if v := strings.TrimSpace(c.PostForm("price")); v != "" {
		price, err := parsePrice(v)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid price")
			return
		}
		draft.Price = &price
	}

	h.dash.SubmitEdit(c.Request.Context(), draft)
	backToDashboard(c)
}

func (h *Handler) Toggle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.dash.ToggleAvailability(c.Request.Context(), uint(id))
	backToDashboard(c)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.dash.Delete(c.Request.Context(), uint(id))
	backToDashboard(c)
}

func (h *Handler) Retry(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid notice id")
		return
	}
	h.dash.Retry(c.Request.Context(), id)
	backToDashboard(c)
}

func (h *Handler) Dismiss(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid notice id")
		return
	}
	h.dash.Dismiss(id)
	backToDashboard(c)
}

func parsePrice(v string) (float64, error) {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}
