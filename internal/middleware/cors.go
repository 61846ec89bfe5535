package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultCORSMaxAge caps preflight cache at 24 hours (in seconds).
const DefaultCORSMaxAge = 86400

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	// AllowOrigins defines the origins that may access the API.
	// "*" allows all origins and disables credentials.
	AllowOrigins []string

	// AllowMethods defines the methods allowed on cross-origin requests.
	AllowMethods []string

	// AllowHeaders defines the request headers allowed on the actual request.
	AllowHeaders []string

	// AllowCredentials indicates whether requests may include cookies
	// or Authorization headers from the browser.
	AllowCredentials bool

	// ExposeHeaders defines the response headers browsers may read.
	ExposeHeaders []string

	// MaxAge indicates how long (in seconds) a preflight result is cached.
	MaxAge int
}

// DefaultCORSConfig returns the development default: any origin, the methods
// the API actually routes, and the request ID header exposed so browser
// clients can correlate failures with server logs.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestID,
		},
		AllowCredentials: false,
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		MaxAge:           DefaultCORSMaxAge,
	}
}

// CORSConfigForOrigins returns a config restricted to the given origins,
// with credentials enabled. Used when the deployment lists its frontends
// explicitly instead of running with the wildcard default.
func CORSConfigForOrigins(origins ...string) CORSConfig {
	config := DefaultCORSConfig()
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

// CORS returns a CORS middleware with the given configuration.
func CORS(config CORSConfig) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     config.AllowOrigins,
		AllowMethods:     config.AllowMethods,
		AllowHeaders:     config.AllowHeaders,
		AllowCredentials: config.AllowCredentials,
		ExposeHeaders:    config.ExposeHeaders,
		MaxAge:           config.MaxAge,
	})
}
