package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gin-gonic/gin"
	middleware "github.com/oapi-codegen/gin-middleware"
	"github.com/swaggest/swgui/v5emb"

	httpopenapi "github.com/fairyhunter13/product-catalog-service/internal/http/openapi"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) (http.Handler, error) {
	doc, err := httpopenapi.Load()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), WithRequestID(), WithLogging())

	r.GET("/", app.rootHandler)
	r.GET("/healthz", app.healthHandler)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	r.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", httpopenapi.YAML)
	})
	r.GET("/openapi.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
	docs := v5emb.New("Product Catalog Service", "/openapi.yaml", "/docs/")
	r.GET("/docs/*any", gin.WrapH(docs))

	validate := middleware.OapiRequestValidatorWithOptions(doc, &middleware.Options{
		ErrorHandler: func(c *gin.Context, message string, status int) {
			WriteJSONError(c, status, "bad_input", message)
		},
	})

	products := r.Group("/api/products")
	products.GET("", validate, app.listProductsHandler)
	products.GET("/:id", app.getProductHandler)

	mutations := products.Group("", app.rejectWhenClosing, Authenticate())
	mutations.POST("", app.createProductHandler)
	mutations.PATCH("/:id", app.updateProductHandler)
	mutations.DELETE("/:id", app.deleteProductHandler)
	return r, nil
}
