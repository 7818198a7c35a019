package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jbergloda1/swha-backend/usecase"
)

const maxBatchVideos = 10

func viewerFrom(c echo.Context) usecase.Viewer {
	claims := claimsFrom(c)
	return usecase.Viewer{UserID: claims.UserID, Admin: claims.Role == "admin"}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formBool reads an optional boolean form value, falling back to def
func formBool(value string, def bool) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return b
}

func (h *handler) limitBody(c echo.Context, files int64) {
	if h.MaxUploadBytes > 0 {
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, files*h.MaxUploadBytes+1<<20)
	}
}

// uploadVideo stores a single multipart "file" with its title and description
func (h *handler) uploadVideo(c echo.Context) error {
	h.limitBody(c, 1)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file provided")
	}
	if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
		return h.serviceError(c, usecase.ErrVideoTooLarge)
	}
	data, err := readFormFile(fileHeader)
	if err != nil {
		return badRequest(c, "Unable to read uploaded file")
	}

	video, err := h.Videos.Upload(c.Request().Context(), viewerFrom(c), usecase.VideoUpload{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Filename:    fileHeader.Filename,
		Public:      formBool(c.FormValue("is_public"), true),
		Data:        data,
	})
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, VideoUploadResponse{
		VideoID:  video.ID,
		Message:  "Video uploaded successfully",
		Filename: video.Filename,
	})
}

// uploadVideos stores several "files", paired by position with "titles" and
// the optional "descriptions" and "is_public" lists.
func (h *handler) uploadVideos(c echo.Context) error {
	h.limitBody(c, maxBatchVideos)

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Invalid multipart form")
	}
	files := form.File["files"]
	titles := form.Value["titles"]
	descriptions := form.Value["descriptions"]
	public := form.Value["is_public"]

	if len(files) == 0 {
		return badRequest(c, "No files provided")
	}
	if len(files) > maxBatchVideos {
		return badRequest(c, "Too many files in one request")
	}
	if len(files) != len(titles) {
		return badRequest(c, "Number of files must match number of titles")
	}

	uploads := make([]usecase.VideoUpload, 0, len(files))
	for i, fh := range files {
		upload := usecase.VideoUpload{Title: titles[i], Filename: fh.Filename, Public: true}
		if i < len(descriptions) {
			upload.Description = descriptions[i]
		}
		if i < len(public) {
			upload.Public = formBool(public[i], true)
		}
		// the body limit bounds what is read; the service enforces the per-file size
		if upload.Data, err = readFormFile(fh); err != nil {
			return badRequest(c, "Unable to read uploaded file")
		}
		uploads = append(uploads, upload)
	}

	outcomes := h.Videos.UploadMany(c.Request().Context(), viewerFrom(c), uploads)
	resp := make([]VideoUploadResponse, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			resp = append(resp, VideoUploadResponse{Message: "Upload failed", Filename: o.Filename, Error: o.Err.Error()})
			continue
		}
		resp = append(resp, VideoUploadResponse{
			VideoID:  o.Video.ID,
			Message:  "Video uploaded successfully",
			Filename: o.Video.Filename,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) listVideos(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	result, err := h.Videos.List(c.Request().Context(), viewerFrom(c), usecase.VideoQuery{
		Page:    page,
		PerPage: perPage,
		Search:  c.QueryParam("search"),
		OwnerID: c.QueryParam("user_id"),
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handler) getVideo(c echo.Context) error {
	video, err := h.Videos.Get(c.Request().Context(), viewerFrom(c), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, video)
}

func (h *handler) updateVideo(c echo.Context) error {
	var req VideoUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	video, err := h.Videos.Update(c.Request().Context(), viewerFrom(c), c.Param("id"), usecase.VideoUpdate{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, video)
}

func (h *handler) deleteVideo(c echo.Context) error {
	if err := h.Videos.Delete(c.Request().Context(), viewerFrom(c), c.Param("id")); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Video deleted successfully"})
}

// streamVideo serves the content with Range support so players can seek
func (h *handler) streamVideo(c echo.Context) error {
	video, data, err := h.Videos.Open(c.Request().Context(), viewerFrom(c), c.Param("id"))
	if err != nil {
		return h.serviceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, video.ContentType)
	http.ServeContent(c.Response(), c.Request(), video.Filename, video.UpdatedAt, bytes.NewReader(data))
	return nil
}
