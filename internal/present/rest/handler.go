package rest

import (
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwellspace/dwell"
	"github.com/dwellspace/dwell/internal/domain"
	"github.com/dwellspace/dwell/internal/infra/gateway"
	"github.com/dwellspace/dwell/internal/present/rest/presenter"
	"github.com/dwellspace/dwell/internal/service"
	"github.com/dwellspace/dwell/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Handler struct {
	favorites  *usecase.FavoritesUsecase
	properties usecase.PropertyRepository
	signal     *service.SignalService
	auth       *gateway.AuthGateway
}

func NewHandler(
	favorites *usecase.FavoritesUsecase,
	properties usecase.PropertyRepository,
	signal *service.SignalService,
	auth *gateway.AuthGateway,
) *Handler {
	return &Handler{
		favorites:  favorites,
		properties: properties,
		signal:     signal,
		auth:       auth,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/favorites", h.handleListFavorites)
	e.GET("/api/v1/favorites/:propertyID", h.handleIsFavorite)
	e.POST("/api/v1/favorites/toggle", h.handleToggleFavorite)
	e.POST("/api/v1/favorites/migrate", h.handleMigrateFavorites)
	e.GET("/api/v1/properties/:id", h.handleGetProperty)
	e.GET("/realtime", h.handleRealtime)
}

func requesterFromContext(c echo.Context) domain.Requester {
	ctx := c.Request().Context()

	req := domain.Requester{State: domain.SessionAnonymous}

	if state, ok := ctx.Value(domain.RequesterStateCtxKey).(domain.SessionState); ok {
		req.State = state
	}
	if guestID, ok := ctx.Value(domain.GuestIdCtxKey).(string); ok {
		req.GuestID = guestID
	}
	if userID, ok := ctx.Value(domain.RequesterIdCtxKey).(string); ok && userID != "" {
		identity := domain.SessionIdentity{UserID: userID}
		if email, ok := ctx.Value(domain.RequesterEmailCtxKey).(string); ok {
			identity.Email = email
		}
		req.Identity = &identity
	}

	return req
}

func (h *Handler) handleListFavorites(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFromContext(c)

	views, err := h.favorites.ListFavorites(ctx, req)
	if err != nil {
		return presentFavoritesError(c, err)
	}

	favorites := make([]dwell.Favorite, 0, len(views))
	for _, view := range views {
		favorites = append(favorites, viewToWire(view))
	}

	return presenter.OK(c, echo.Map{"favorites": favorites})
}

func (h *Handler) handleIsFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFromContext(c)

	propertyID := c.Param("propertyID")
	if propertyID == "" {
		return presenter.BadRequestMessage(c, "property id is required")
	}

	favorited, err := h.favorites.IsFavorite(ctx, req, propertyID)
	if err != nil {
		return presentFavoritesError(c, err)
	}

	return presenter.OK(c, echo.Map{"favorited": favorited})
}

func (h *Handler) handleToggleFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFromContext(c)

	var body struct {
		PropertyID string `json:"propertyId"`
	}
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.PropertyID == "" {
		return presenter.BadRequestMessage(c, "propertyId is required")
	}

	err := h.favorites.ToggleFavorite(ctx, req, body.PropertyID)
	if err != nil {
		return presentFavoritesError(c, err)
	}

	favorited, err := h.favorites.IsFavorite(ctx, req, body.PropertyID)
	if err != nil {
		return presentFavoritesError(c, err)
	}

	return presenter.OK(c, echo.Map{"favorited": favorited})
}

func (h *Handler) handleMigrateFavorites(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFromContext(c)

	if req.State != domain.SessionAuthenticated {
		return presenter.Unauthorized(c, "sign in to sync favorites")
	}

	if err := h.favorites.MigrateGuestFavorites(ctx, req); err != nil {
		return presentFavoritesError(c, err)
	}

	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleGetProperty(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if id == "" {
		return presenter.BadRequestMessage(c, "property id is required")
	}

	property, err := h.properties.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "property not found")
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, property)
}

// handleRealtime upgrades the connection, binds a session tracker to the
// caller's token, and forwards favorites-changed events and notifications
// for the caller's subjects until the socket closes. Tracker, watcher, and
// pubsub subscriptions are all released on teardown.
func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	token := c.QueryParam("token")
	guestID := c.Request().Header.Get(domain.GuestIdHeader)
	if guestID == "" {
		guestID = c.QueryParam("guestId")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	tracker := service.NewSessionTracker(h.auth.Session(token))
	defer tracker.Dispose()

	if err := tracker.Start(ctx); err != nil {
		slog.Warn("realtime session resolve failed", "error", err)
		conn.WriteJSON(echo.Map{"error": "session could not be resolved"})
		return nil
	}

	unwatch := h.favorites.WatchSession(tracker, guestID)
	defer unwatch()

	subjects := make([]string, 0, 2)
	if guestID != "" {
		subjects = append(subjects, guestID)
	}
	if _, identity := tracker.Current(); identity != nil {
		subjects = append(subjects, identity.UserID)
	}
	if len(subjects) == 0 {
		conn.WriteJSON(echo.Map{"error": "no subject to subscribe to"})
		return nil
	}

	merged := make(chan dwell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	for _, subject := range subjects {
		events, dispose := h.signal.Subscribe(ctx, dwell.FavoritesChannel(subject))
		defer dispose()
		go forwardEvents(events, merged, done)
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-merged:
			if err := conn.WriteJSON(event); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// forwardEvents drains one subscription into the merged stream. It gives up
// on teardown so a burst larger than the merged buffer cannot strand it
// after the connection is gone.
func forwardEvents(events <-chan dwell.Event, merged chan<- dwell.Event, done <-chan struct{}) {
	for event := range events {
		select {
		case merged <- event:
		case <-done:
			return
		}
	}
}

func presentFavoritesError(c echo.Context, err error) error {
	var validation domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrInFlight):
		return presenter.Conflict(c, "a matching action is already processing")
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrSessionUnresolved):
		return presenter.Unauthorized(c, err.Error())
	case errors.As(err, &validation):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	default:
		trace.SpanFromContext(c.Request().Context()).RecordError(err)
		return presenter.InternalError(c, err)
	}
}

func viewToWire(view domain.FavoriteView) dwell.Favorite {
	favorite := dwell.Favorite{
		ID:         view.Record.ID,
		PropertyID: view.Record.PropertyID,
		CreatedAt:  view.Record.CreatedAt,
	}
	if view.Property != nil {
		favorite.Property = &dwell.Property{
			ID:       view.Property.ID,
			Title:    view.Property.Title,
			City:     view.Property.City,
			Price:    view.Property.Price,
			Currency: view.Property.Currency,
			ImageURL: view.Property.ImageURL,
		}
	}
	return favorite
}
