package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/vectord/internal/catalog"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
)

// Projects

func (s *Server) createProject(c echo.Context) error {
	var in catalog.CreateProjectInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return respond(c, http.StatusCreated, s.catalog.CreateProject(c.Request().Context(), ownerOf(c), in))
}

func (s *Server) listProjects(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetProjectList(c.Request().Context(), ownerOf(c)))
}

func (s *Server) getProject(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetProject(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) updateProject(c echo.Context) error {
	var u metadata.ProjectUpdate
	if err := c.Bind(&u); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return respond(c, http.StatusOK, s.catalog.UpdateProject(c.Request().Context(), ownerOf(c), c.Param("id"), u))
}

func (s *Server) deleteProject(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.DeleteProject(c.Request().Context(), ownerOf(c), c.Param("id")))
}

// Indexes

func (s *Server) createIndex(c echo.Context) error {
	var body struct {
		Name      string `json:"name"`
		Dimension int    `json:"dimension,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in := catalog.CreateIndexInput{ProjectID: c.Param("id"), Name: body.Name, Dimension: body.Dimension}
	return respond(c, http.StatusCreated, s.catalog.CreateIndex(c.Request().Context(), ownerOf(c), in))
}

func (s *Server) listIndexes(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetIndexList(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) getIndex(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetIndex(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) deleteIndex(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.DeleteIndex(c.Request().Context(), ownerOf(c), c.Param("id")))
}

// Files

// ingestFile accepts a multipart upload with a "file" part and an optional
// "metadata" part holding a JSON object of strings.
func (s *Server) ingestFile(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest(c, "File exceeds the upload limit")
		}
		return badRequest(c, "A multipart \"file\" field is required")
	}

	var meta map[string]string
	if raw := c.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return badRequest(c, "Metadata must be a JSON object of strings")
		}
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}

	in := catalog.IngestFileInput{
		IndexID:  c.Param("id"),
		FileName: fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Data:     data,
		Metadata: meta,
	}
	return respond(c, http.StatusCreated, s.catalog.IngestFile(req.Context(), ownerOf(c), in))
}

func (s *Server) ingestText(c echo.Context) error {
	var in catalog.IngestTextInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in.IndexID = c.Param("id")
	return respond(c, http.StatusCreated, s.catalog.IngestText(c.Request().Context(), ownerOf(c), in))
}

func (s *Server) listFiles(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetFileList(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) getFile(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetFile(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) getFileChunks(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.GetFileChunks(c.Request().Context(), ownerOf(c), c.Param("id")))
}

func (s *Server) deleteFile(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.DeleteFile(c.Request().Context(), ownerOf(c), c.Param("id")))
}

// Search

func (s *Server) searchIndex(c echo.Context) error {
	var in catalog.SearchIndexInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in.IndexID = c.Param("id")
	return respond(c, http.StatusOK, s.catalog.SearchIndex(c.Request().Context(), ownerOf(c), in))
}

func (s *Server) searchProject(c echo.Context) error {
	var in catalog.SearchProjectInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in.ProjectID = c.Param("id")
	return respond(c, http.StatusOK, s.catalog.SearchProject(c.Request().Context(), ownerOf(c), in))
}

// Tokens

func (s *Server) createToken(c echo.Context) error {
	var in catalog.CreateTokenInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return respond(c, http.StatusCreated, s.catalog.CreateToken(c.Request().Context(), ownerOf(c), in))
}

func (s *Server) listTokens(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.ListTokens(c.Request().Context(), ownerOf(c)))
}

func (s *Server) setTokenActive(c echo.Context) error {
	var in catalog.TokenState
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	return respond(c, http.StatusOK, s.catalog.SetTokenActive(c.Request().Context(), ownerOf(c), c.Param("id"), in))
}

func (s *Server) deleteToken(c echo.Context) error {
	return respond(c, http.StatusOK, s.catalog.DeleteToken(c.Request().Context(), ownerOf(c), c.Param("id")))
}
