package pool

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Body of POST /tokens/select.
type SelectRequest struct {
	Interests map[string]identity.Interest `json:"interests"`
	// Durations, e.g. "30s".
	MatchTimeout   string `json:"match_timeout"`
	NoMatchTimeout string `json:"no_match_timeout"`
}

// Timeouts applied when a select request leaves them out.
type SelectDefaults struct {
	MatchTimeout   time.Duration
	NoMatchTimeout time.Duration
}

func parseTimeout(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid timeout: %q", utils.ErrBadRequest, value)
	}
	return d, nil
}

func lookupToken(pool *Pool, c echo.Context) (*Token, error) {
	token, ok := pool.Lookup(c.Param("id"))
	if !ok {
		return nil, fmt.Errorf("%w: token %s", utils.ErrNotFound, c.Param("id"))
	}
	return token, nil
}

// Returns a token whose lease could not be handed to the requester.
func releaseToken(pool *Pool, token *Token) {
	log.Warnf("Select response for token %s not delivered, returning it", token.Id())
	if err := pool.ReturnToken(token); err != nil {
		log.Warn("Failed to return token:", err)
	}
}

// NewHttpHandler installs the pool's HTTP routes on r.
//
//	GET    /tokens              snapshot of all tokens
//	POST   /tokens/select       lease a matching token
//	POST   /tokens/:id/return   return a leased token
//	DELETE /tokens/:id          invalidate a token
//	GET    /capacity?group=key  capacity grouped by attribute keys
//	GET    /statistics          pool statistics
func NewHttpHandler(pool *Pool, defaults SelectDefaults, r *echo.Echo) {
	r.GET("/tokens", func(c echo.Context) error {
		return c.JSON(http.StatusOK, pool.GetTokens())
	})

	r.POST("/tokens/select", func(c echo.Context) error {
		request := SelectRequest{}
		if err := c.Bind(&request); err != nil {
			return utils.HttpErrorResponse(c, fmt.Errorf("%w: %v", utils.ErrBadRequest, err))
		}

		matchTimeout, err := parseTimeout(request.MatchTimeout, defaults.MatchTimeout)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		noMatchTimeout, err := parseTimeout(request.NoMatchTimeout, defaults.NoMatchTimeout)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		token, err := pool.SelectToken(c.Request().Context(), request.Interests, matchTimeout, noMatchTimeout)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		// The requester is gone and will never learn the token id
		if err := c.Request().Context().Err(); err != nil {
			releaseToken(pool, token)
			return utils.HttpErrorResponse(c, fmt.Errorf("%w: %w", utils.ErrCancelled, err))
		}

		pool.RLock()
		info := token.infoNoLock()
		pool.RUnlock()

		if err := c.JSON(http.StatusOK, info); err != nil {
			releaseToken(pool, token)
			return err
		}
		return nil
	})

	r.POST("/tokens/:id/return", func(c echo.Context) error {
		token, err := lookupToken(pool, c)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		if err := pool.ReturnToken(token); err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		return c.NoContent(http.StatusNoContent)
	})

	r.DELETE("/tokens/:id", func(c echo.Context) error {
		token, err := lookupToken(pool, c)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		pool.Invalidate(token)
		return c.NoContent(http.StatusNoContent)
	})

	r.GET("/capacity", func(c echo.Context) error {
		groupBy := c.QueryParams()["group"]
		return c.JSON(http.StatusOK, pool.Capacity(groupBy...))
	})

	r.GET("/statistics", func(c echo.Context) error {
		return c.JSON(http.StatusOK, pool.Statistics())
	})
}
