// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// Catalog is the mutation side used by the handlers.
type Catalog interface {
	Create(ctx context.Context, actor model.Actor, in model.ProductInput, blobs []model.Blob) (catalog.Result, error)
	Update(ctx context.Context, actor model.Actor, id string, patch model.ProductPatch, blobs []model.Blob) (catalog.Result, error)
	Delete(ctx context.Context, actor model.Actor, id string) (catalog.Result, error)
}

// Finder answers catalog reads.
type Finder interface {
	Search(ctx context.Context, f model.Filter) ([]model.Product, error)
	GetByID(ctx context.Context, id string) (model.Product, error)
}

type App struct {
	Catalog Catalog
	Finder  Finder
	closing atomic.Bool
	started time.Time
}

type productResponse struct {
	Message      string        `json:"message"`
	Product      model.Product `json:"product"`
	Degraded     bool          `json:"degraded,omitempty"`
	FailedTopics []string      `json:"failedTopics,omitempty"`
}

type listResponse struct {
	Message  string          `json:"message"`
	Products []model.Product `json:"products"`
}

func NewApp(c Catalog, f Finder) *App {
	useFormFieldNames()
	return &App{Catalog: c, Finder: f, started: time.Now()}
}

// StartShutdown makes mutating routes answer 503 while in-flight requests finish.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func (a *App) rejectWhenClosing(c *gin.Context) {
	if a.closing.Load() {
		WriteJSONError(c, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	c.Next()
}

func (a *App) createProductHandler(c *gin.Context) {
	var form createForm
	if err := c.ShouldBind(&form); err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	in, err := form.input()
	if err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	blobs, err := readImages(c)
	if err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	res, err := a.Catalog.Create(c.Request.Context(), actorFrom(c), in, blobs)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resultResponse("Product created successfully", res))
}

func (a *App) updateProductHandler(c *gin.Context) {
	var form patchForm
	if err := c.ShouldBind(&form); err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	patch, err := form.patch(c.Request.PostForm)
	if err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	blobs, err := readImages(c)
	if err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	res, err := a.Catalog.Update(c.Request.Context(), actorFrom(c), c.Param("id"), patch, blobs)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse("Product updated successfully", res))
}

func (a *App) deleteProductHandler(c *gin.Context) {
	res, err := a.Catalog.Delete(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse("Product deleted successfully", res))
}

func (a *App) listProductsHandler(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeServiceError(c, validationError(err))
		return
	}
	products, err := a.Finder.Search(c.Request.Context(), q.filter())
	if err != nil {
		writeServiceError(c, &catalog.Error{Kind: catalog.KindPersistence, Op: "catalog.Search", Err: err})
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	c.JSON(http.StatusOK, listResponse{Message: "Products retrieved successfully", Products: products})
}

func (a *App) getProductHandler(c *gin.Context) {
	p, err := a.Finder.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, catalog.ErrNoRecord) {
			err = &catalog.Error{Kind: catalog.KindPersistence, Op: "catalog.Get", Err: err}
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, productResponse{Message: "Product retrieved successfully", Product: p})
}

func (a *App) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Product catalog service is running"})
}

func (a *App) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"closing":    a.closing.Load(),
		"uptime_sec": time.Since(a.started).Seconds(),
	})
}

func resultResponse(msg string, res catalog.Result) productResponse {
	return productResponse{
		Message:      msg,
		Product:      res.Product,
		Degraded:     res.Degraded(),
		FailedTopics: res.FailedTopics,
	}
}

// validationError classifies request decoding failures as bad input.
func validationError(err error) error {
	var verr model.ValidationError
	if !errors.As(err, &verr) {
		err = bindError(err)
	}
	return &catalog.Error{Kind: catalog.KindValidation, Op: "httpapi.decode", Err: err}
}
