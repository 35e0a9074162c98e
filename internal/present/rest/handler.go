package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/present/rest/middleware"
	"github.com/stelae/stelae/internal/present/rest/presenter"
	"github.com/stelae/stelae/internal/service"
	"github.com/stelae/stelae/internal/usecase"
)

type Handler struct {
	resource    *usecase.ResourceUsecase
	tile        *usecase.TileUsecase
	bulk        *usecase.BulkLoader
	descriptors *usecase.DescriptorRenderer
	signal      *service.SignalService
}

func NewHandler(
	resource *usecase.ResourceUsecase,
	tile *usecase.TileUsecase,
	bulk *usecase.BulkLoader,
	descriptors *usecase.DescriptorRenderer,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		resource:    resource,
		tile:        tile,
		bulk:        bulk,
		descriptors: descriptors,
		signal:      signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/resources", h.handleResourceSave)
	e.GET("/api/v1/resources/:id", h.handleResourceGet)
	e.DELETE("/api/v1/resources/:id", h.handleResourceDelete)
	e.POST("/api/v1/resources/:id/copy", h.handleResourceCopy)
	e.GET("/api/v1/resources/:id/node-values", h.handleNodeValues)
	e.GET("/api/v1/resources/:id/related", h.handleRelated)
	e.POST("/api/v1/tiles", h.handleTileSave)
	e.DELETE("/api/v1/tiles/:id", h.handleTileDelete)
	e.POST("/api/v1/bulk", h.handleBulkLoad)
	e.GET("/realtime", h.handleRealtime)
}

type tileRequest struct {
	TileID             string         `json:"tileid"`
	ResourceInstanceID string         `json:"resourceinstanceid"`
	ParentTileID       *string        `json:"parenttileid"`
	NodeGroupID        string         `json:"nodegroupid"`
	SortOrder          int            `json:"sortorder"`
	Data               map[string]any `json:"data"`
	Tiles              []tileRequest  `json:"tiles"`
}

type resourceRequest struct {
	ResourceInstanceID string        `json:"resourceinstanceid"`
	GraphID            string        `json:"graph_id"`
	LegacyID           string        `json:"legacyid"`
	Tiles              []tileRequest `json:"tiles"`
}

func (r tileRequest) toDomain() (*domain.Tile, error) {
	tile := &domain.Tile{
		SortOrder: r.SortOrder,
		Data:      r.Data,
	}
	var err error
	if r.TileID != "" {
		if tile.TileID, err = uuid.Parse(r.TileID); err != nil {
			return nil, err
		}
	}
	if r.ResourceInstanceID != "" {
		if tile.ResourceInstanceID, err = uuid.Parse(r.ResourceInstanceID); err != nil {
			return nil, err
		}
	}
	if r.ParentTileID != nil {
		parentID, err := uuid.Parse(*r.ParentTileID)
		if err != nil {
			return nil, err
		}
		tile.ParentTileID = &parentID
	}
	if tile.NodeGroupID, err = uuid.Parse(r.NodeGroupID); err != nil {
		return nil, err
	}
	for _, child := range r.Tiles {
		converted, err := child.toDomain()
		if err != nil {
			return nil, err
		}
		tile.Tiles = append(tile.Tiles, converted)
	}
	return tile, nil
}

func (r resourceRequest) toDomain() (*domain.Resource, error) {
	resource := &domain.Resource{LegacyID: r.LegacyID}
	var err error
	if r.ResourceInstanceID != "" {
		if resource.ResourceInstanceID, err = uuid.Parse(r.ResourceInstanceID); err != nil {
			return nil, err
		}
	}
	if resource.GraphID, err = uuid.Parse(r.GraphID); err != nil {
		return nil, err
	}
	for _, tile := range r.Tiles {
		converted, err := tile.toDomain()
		if err != nil {
			return nil, err
		}
		resource.Tiles = append(resource.Tiles, converted)
	}
	return resource, nil
}

func (h *Handler) handleResourceSave(c echo.Context) error {
	ctx := c.Request().Context()

	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	resource, err := req.toDomain()
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.resource.Save(ctx, resource, middleware.ActorFrom(c)); err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"resourceinstanceid": resource.ResourceInstanceID})
}

func (h *Handler) handleResourceGet(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid resource id")
	}
	resource, err := h.resource.Get(ctx, id)
	if err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{
		"resourceinstanceid": resource.ResourceInstanceID,
		"graph_id":           resource.GraphID,
		"legacyid":           resource.LegacyID,
		"displayname":        h.descriptors.DisplayName(ctx, id),
		"tiles":              resource.Tiles,
	})
}

func (h *Handler) handleResourceDelete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid resource id")
	}
	deleted, err := h.resource.Delete(ctx, id, middleware.ActorFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	if !deleted {
		return presenter.Forbidden(c, "resource has data pending review by another user")
	}
	return presenter.OK(c, echo.Map{"status": "deleted"})
}

func (h *Handler) handleResourceCopy(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid resource id")
	}
	copied, err := h.resource.Copy(ctx, id, middleware.ActorFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"resourceinstanceid": copied.ResourceInstanceID})
}

func (h *Handler) handleNodeValues(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid resource id")
	}
	name := c.QueryParam("name")
	if name == "" {
		return presenter.BadRequestMessage(c, "name parameter is required")
	}
	values, err := h.resource.GetNodeValues(ctx, id, name)
	if err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"values": values})
}

func (h *Handler) handleRelated(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid resource id")
	}
	start, _ := strconv.Atoi(c.QueryParam("start"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if limit <= 0 {
		limit = usecase.RelatedResourcesPerPage
	}

	result, err := h.resource.RelatedResources(ctx, id, start, limit, page)
	if err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleTileSave(c echo.Context) error {
	ctx := c.Request().Context()

	var req tileRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	tile, err := req.toDomain()
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if tile.ResourceInstanceID == uuid.Nil {
		return presenter.BadRequestMessage(c, "resourceinstanceid is required")
	}

	opts := usecase.TileSaveOptions{Log: true, Index: true}
	if err := h.tile.Save(ctx, tile, middleware.ActorFrom(c), opts); err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"tileid": tile.TileID})
}

func (h *Handler) handleTileDelete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid tile id")
	}
	tile, err := h.tile.LoadTree(ctx, id)
	if err != nil {
		return mapError(c, err)
	}
	if err := h.tile.Delete(ctx, tile, middleware.ActorFrom(c)); err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "deleted"})
}

func (h *Handler) handleBulkLoad(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Resources []resourceRequest `json:"resources"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	resources := make([]*domain.Resource, 0, len(req.Resources))
	for _, r := range req.Resources {
		resource, err := r.toDomain()
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		resources = append(resources, resource)
	}

	if err := h.bulk.Load(ctx, resources, middleware.ActorFrom(c)); err != nil {
		return mapError(c, err)
	}
	return presenter.OK(c, echo.Map{"loaded": len(resources)})
}

func mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.TileValidationError{}):
		return presenter.ValidationFailed(c, err)
	case errors.Is(err, domain.ModelInactiveError{}):
		return presenter.ValidationFailed(c, err)
	case errors.Is(err, domain.InvalidNodeNameError{}):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.MultipleNodesFoundError{}):
		return presenter.BadRequest(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleRealtime streams committed edit events to the client over a
// websocket. The client may send "h" heartbeat frames; anything else is
// ignored.
func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()

	sub := h.signal.Subscribe(ctx)
	defer sub.Close()

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req struct {
				Type string `json:"type"`
			}
			if err := ws.ReadJSON(&req); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	messages := sub.Channel()
	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
