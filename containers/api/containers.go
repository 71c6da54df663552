package api

import (
	"errors"
	"net/http"
	"strconv"

	"container-tracker/containers/models"
	"container-tracker/containers/repositories"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) initContainerRoutes(g *echo.Group) {
	g.POST("/containers", s.CreateContainer)
	g.GET("/containers", s.ListContainers)
	g.GET("/containers/search", s.SearchContainers)
	g.GET("/containers/:id", s.GetContainer)
	g.PUT("/containers/:id", s.UpdateContainer)
	g.DELETE("/containers/:id", s.DeleteContainer)
}

// CreateContainerRequest is the body of POST /api/containers.
type CreateContainerRequest struct {
	ContainerNumber string `json:"container_number"`
	ISOCode         string `json:"iso_code"`
	OtherInfo       string `json:"other_info"`
}

// UpdateContainerRequest is the body of PUT /api/containers/:id; absent fields are left unchanged.
type UpdateContainerRequest struct {
	ContainerNumber *string `json:"container_number"`
	ISOCode         *string `json:"iso_code"`
	OtherInfo       *string `json:"other_info"`
}

type CreateContainerResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

type UpdateContainerResponse struct {
	Message string `json:"message"`
	models.Container
}

type DeletedContainer struct {
	ID              uint   `json:"id"`
	ContainerNumber string `json:"container_number"`
}

type DeleteContainerResponse struct {
	Message          string           `json:"message"`
	DeletedContainer DeletedContainer `json:"deleted_container"`
}

type SearchContainersResponse struct {
	Containers []models.Container `json:"containers"`
	Count      int                `json:"count"`
}

func (s *Server) CreateContainer(c echo.Context) error {
	var req CreateContainerRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid JSON body")
	}
	if req.ContainerNumber == "" {
		return respondError(c, http.StatusBadRequest, "container_number is required")
	}

	ctx := c.Request().Context()

	taken, err := s.store.NumberTaken(ctx, req.ContainerNumber, 0)
	if err != nil {
		return s.internalError(c, "Failed to save container", err)
	}
	if taken {
		return respondError(c, http.StatusConflict, repositories.ErrDuplicateNumber.Error())
	}

	container := models.Container{
		ContainerNumber: req.ContainerNumber,
		ISOCode:         req.ISOCode,
		OtherInfo:       req.OtherInfo,
	}
	if err := s.store.Create(ctx, &container); err != nil {
		return s.internalError(c, "Failed to save container", err)
	}

	s.logger.Info("Container saved",
		zap.Uint("id", container.ID),
		zap.String("container_number", container.ContainerNumber),
		zap.String("iso_code", container.ISOCode),
	)
	return c.JSON(http.StatusCreated, CreateContainerResponse{Message: "Container saved", ID: container.ID})
}

func (s *Server) ListContainers(c echo.Context) error {
	containers, err := s.store.List(c.Request().Context())
	if err != nil {
		return s.internalError(c, "Failed to list containers", err)
	}
	if containers == nil {
		containers = []models.Container{}
	}
	return c.JSON(http.StatusOK, containers)
}

func (s *Server) GetContainer(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Container not found")
	}

	container, err := s.store.Get(c.Request().Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "Container not found")
	}
	if err != nil {
		return s.internalError(c, "Failed to load container", err)
	}
	return c.JSON(http.StatusOK, container)
}

func (s *Server) UpdateContainer(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Container not found")
	}

	ctx := c.Request().Context()

	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return respondError(c, http.StatusNotFound, "Container not found")
		}
		return s.internalError(c, "Failed to update container", err)
	}

	var req UpdateContainerRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid JSON body")
	}
	patch := models.ContainerPatch{
		ContainerNumber: req.ContainerNumber,
		ISOCode:         req.ISOCode,
		OtherInfo:       req.OtherInfo,
	}
	if patch.Empty() {
		return respondError(c, http.StatusBadRequest, "No data provided")
	}
	if patch.ContainerNumber != nil && *patch.ContainerNumber == "" {
		return respondError(c, http.StatusBadRequest, "container_number cannot be empty")
	}

	container, err := s.store.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return respondError(c, http.StatusNotFound, "Container not found")
	case errors.Is(err, repositories.ErrDuplicateNumber):
		return respondError(c, http.StatusConflict, repositories.ErrDuplicateNumber.Error())
	case err != nil:
		return s.internalError(c, "Failed to update container", err)
	}

	return c.JSON(http.StatusOK, UpdateContainerResponse{
		Message:   "Container updated successfully",
		Container: *container,
	})
}

func (s *Server) DeleteContainer(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Container not found")
	}

	container, err := s.store.Delete(c.Request().Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "Container not found")
	}
	if err != nil {
		return s.internalError(c, "Failed to delete container", err)
	}

	s.logger.Info("Container deleted",
		zap.Uint("id", container.ID),
		zap.String("container_number", container.ContainerNumber),
	)
	return c.JSON(http.StatusOK, DeleteContainerResponse{
		Message: "Container deleted successfully",
		DeletedContainer: DeletedContainer{
			ID:              container.ID,
			ContainerNumber: container.ContainerNumber,
		},
	})
}

func (s *Server) SearchContainers(c echo.Context) error {
	number := c.QueryParam("number")
	isoCode := c.QueryParam("iso_code")

	if number == "" && isoCode == "" {
		return respondError(c, http.StatusBadRequest, "Please provide number or iso_code parameter")
	}

	containers, err := s.store.Search(c.Request().Context(), number, isoCode)
	if err != nil {
		return s.internalError(c, "Failed to search containers", err)
	}
	if containers == nil {
		containers = []models.Container{}
	}
	return c.JSON(http.StatusOK, SearchContainersResponse{Containers: containers, Count: len(containers)})
}

func (s *Server) internalError(c echo.Context, message string, err error) error {
	s.logger.Error(message,
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err),
	)
	return respondError(c, http.StatusInternalServerError, message)
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

func parseID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
