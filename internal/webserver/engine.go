package webserver

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/signer"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/mdouchement/quotagate/internal/sweeper"
	middlewarepkg "github.com/mdouchement/quotagate/internal/webserver/middleware"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Database database.Client
	Storage  storage.Backend
	Counter  *quota.Counter
	Gate     *quota.Gate
	Signer   *signer.Signer
	Sweeper  *sweeper.Sweeper
	//
	SweepToken string
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Gzip())
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

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

	// Gateway API
	//
	api := router.Group("/api")

	upload := upload{
		logger:  ctrl.Logger,
		db:      ctrl.Database,
		counter: ctrl.Counter,
		gate:    ctrl.Gate,
		signer:  ctrl.Signer,
	}
	api.GET("/quota", upload.Quota)
	api.POST("/upload-urls", upload.Presign)
	api.POST("/confirm", upload.Confirm)

	file := file{
		logger:  ctrl.Logger,
		db:      ctrl.Database,
		storage: ctrl.Storage,
		counter: ctrl.Counter,
	}
	api.POST("/files/:prefix/:filename/access", file.Touch)
	api.POST("/files/:prefix/:filename/pin", file.Pin)
	api.DELETE("/files/:prefix/:filename", file.Delete)

	// Bucket endpoint: direct uploads authorized by a presigned URL, plus
	// plain downloads.
	//
	bucket := bucket{
		logger:  ctrl.Logger,
		db:      ctrl.Database,
		storage: ctrl.Storage,
		signer:  ctrl.Signer,
	}
	st := router.Group("/storage")
	st.PUT("/:prefix/:filename", bucket.Upload)
	st.GET("/:prefix/:filename", bucket.Download)

	// Sweep trigger
	//
	sweep := sweep{
		logger:  ctrl.Logger,
		sweeper: ctrl.Sweeper,
	}
	router.GET("/__scheduled", sweep.Trigger, middlewarepkg.Authenticate(ctrl.SweepToken))

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
