package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/mdouchement/notesync/internal/server/middlewares"
	"github.com/mdouchement/notesync/internal/server/service"
	"github.com/sirupsen/logrus"
)

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version  string
	Database database.Client
	Logger   logrus.FieldLogger
	// Token is the shared bearer token expected from clients. Empty means no authentication.
	Token string
	// FeedLimit caps the number of changes returned per feed page.
	FeedLimit int
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	if ctrl.FeedLimit <= 0 {
		ctrl.FeedLimit = 500
	}
	if ctrl.Logger == nil {
		ctrl.Logger = logger.Discard()
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler(ctrl.Logger)

	////////////
	// Router //
	////////////

	router := engine.Group("")
	restricted := router.Group("/owners/:owner")
	restricted.Use(middlewares.BearerToken(ctrl.Token))

	// generic handlers
	//
	version := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	}
	router.GET("/", version)
	router.GET("/version", version)

	//
	// note handlers
	//
	note := &note{
		notes: service.NewNotes(ctrl.Database, ctrl.FeedLimit),
	}
	restricted.PUT("/notes/:id", note.Upsert)
	restricted.DELETE("/notes/:id", note.Delete)
	restricted.GET("/changes", note.Changes)

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
