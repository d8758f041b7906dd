package registry

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Reads the uploaded "file" form field.
func readUpload(c echo.Context) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}

	file, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}

	return header.Filename, data, nil
}

// NewHttpHandler installs the registry's HTTP routes on r.
//
//	GET    /files      list resources
//	GET    /files/:id  current payload of a resource
//	POST   /files      register an upload (form field "file") or a path on the registry filesystem (form field "path")
//	PUT    /files/:id  replace content with an upload, or re-read the source path without one
//	DELETE /files/:id  unregister a resource
func NewHttpHandler(registry *Registry, r *echo.Echo) {
	r.GET("/files", func(c echo.Context) error {
		return c.JSON(http.StatusOK, registry.List())
	})

	r.GET("/files/:id", func(c echo.Context) error {
		payload, err := registry.GetFile(c.Param("id"))
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, payload)
	})

	r.POST("/files", func(c echo.Context) error {
		var id string
		var err error

		if path := c.FormValue("path"); path != "" {
			id, err = registry.RegisterFile(path)
		} else {
			var name string
			var data []byte

			name, data, err = readUpload(c)
			if err != nil {
				return utils.HttpErrorResponse(c, err)
			}

			id, err = registry.RegisterContent(name, data)
		}
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		payload, err := registry.GetFile(id)
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		return c.JSON(http.StatusCreated, payload.VersionId())
	})

	r.PUT("/files/:id", func(c echo.Context) error {
		var version protocol.FileVersionId
		var err error

		if _, ferr := c.FormFile("file"); ferr == nil {
			var data []byte

			_, data, err = readUpload(c)
			if err != nil {
				return utils.HttpErrorResponse(c, err)
			}

			version, err = registry.UpdateContent(c.Param("id"), data)
		} else {
			version, err = registry.UpdateFile(c.Param("id"))
		}
		if err != nil {
			return utils.HttpErrorResponse(c, err)
		}

		return c.JSON(http.StatusOK, version)
	})

	r.DELETE("/files/:id", func(c echo.Context) error {
		if err := registry.Unregister(c.Param("id")); err != nil {
			return utils.HttpErrorResponse(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	})
}
