package webserver

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/storage"
	middlewarepkg "github.com/mdouchement/padbank/internal/webserver/middleware"
)

// DefaultBodyLimit bounds the size of uploaded archives.
const DefaultBodyLimit = "512M"

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version string
	Logger  logger.Logger
	Service *service.Service
	Storage storage.Backend
	// Token enables the X-Auth-Token check when not empty.
	Token     string
	BodyLimit string
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	if ctrl.BodyLimit == "" {
		ctrl.BodyLimit = DefaultBodyLimit
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Gzip())
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	v1 := router.Group("/v1",
		middlewarepkg.Authenticate(ctrl.Token),
		middlewarepkg.Identity(),
		middleware.BodyLimit(ctrl.BodyLimit),
	)

	// Banks
	//
	bank := bank{
		logger:  ctrl.Logger,
		service: ctrl.Service,
	}
	v1.GET("/banks", bank.List)
	v1.GET("/banks/:id", bank.Show)
	v1.DELETE("/banks/:id", bank.Delete)
	v1.GET("/banks/:id/transferable", bank.Transferable)
	v1.GET("/quota", bank.Quota)

	// Transfers
	//
	transfer := transfer{
		logger:  ctrl.Logger.WithPrefix("[transfer]"),
		service: ctrl.Service,
		storage: ctrl.Storage,
	}
	v1.POST("/banks/import", transfer.Import)
	v1.GET("/banks/:id/export", transfer.Export)
	v1.POST("/banks/:id/admin-export", transfer.AdminExport)
	v1.GET("/archives", transfer.Archives)
	v1.DELETE("/archives/:name", transfer.RemoveArchive)

	// Blobs
	//
	blob := blob{
		logger:  ctrl.Logger,
		service: ctrl.Service,
	}
	v1.GET("/blobs/:kind/:id", blob.Download)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
