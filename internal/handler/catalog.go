package handler

import (
    "cmp"
    "context"
    "net/http"
    "slices"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
    "github.com/iliyamo/ride-queue-auth/internal/middleware"
    "github.com/iliyamo/ride-queue-auth/internal/model"
    "github.com/iliyamo/ride-queue-auth/internal/service"
)

type RideBrowser interface {
    Rides(ctx context.Context) ([]service.RideView, error)
    Ride(ctx context.Context, rideID uint64) (service.RideView, error)
    MinWaitMinutes(ctx context.Context) (map[uint64]int, error)
    Search(ctx context.Context, q model.RideSearch) ([]model.Ride, int64, error)
}

type TicketBrowser interface {
    Products(ctx context.Context) ([]model.TicketProduct, error)
    Upcoming(ctx context.Context, userID uint64) ([]model.TicketOrder, error)
}

// CatalogHandler serves ride and ticket browsing.
type CatalogHandler struct {
    rides   RideBrowser
    tickets TicketBrowser
}

func NewCatalogHandler(rides RideBrowser, tickets TicketBrowser) *CatalogHandler {
    return &CatalogHandler{rides: rides, tickets: tickets}
}

// ListRides: GET /api/rides
func (h *CatalogHandler) ListRides(c echo.Context) error {
    rides, err := h.rides.Rides(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, rides)
}

// GetRide: GET /api/rides/:id
func (h *CatalogHandler) GetRide(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return badRequest(c, "invalid ride id")
    }
    ride, err := h.rides.Ride(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, ride)
}

// SearchRides: GET /api/rides/search?name=&status=active|any&page=&page_size=
func (h *CatalogHandler) SearchRides(c echo.Context) error {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    size, _ := strconv.Atoi(c.QueryParam("page_size"))
    q := model.RideSearch{
        Name:            c.QueryParam("name"),
        IncludeInactive: strings.EqualFold(strings.TrimSpace(c.QueryParam("status")), "any"),
        Page:            page,
        PageSize:        size,
    }

    rides, total, err := h.rides.Search(c.Request().Context(), q)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data":  rides,
        "total": total,
        "page":  max(page, 1),
    })
}

type rideMinutes struct {
    RideID  uint64 `json:"rideId"`
    Minutes int    `json:"minWaitMinutes"`
}

// MinWaitMinutes: GET /api/rides/minutes
func (h *CatalogHandler) MinWaitMinutes(c echo.Context) error {
    m, err := h.rides.MinWaitMinutes(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]rideMinutes, 0, len(m))
    for id, minutes := range m {
        out = append(out, rideMinutes{RideID: id, Minutes: minutes})
    }
    slices.SortFunc(out, func(a, b rideMinutes) int { return cmp.Compare(a.RideID, b.RideID) })
    return c.JSON(http.StatusOK, out)
}

type slotResp struct {
    ID          uint64 `json:"ticketManagementId"`
    AvailableAt string `json:"availableAt"`
    Stock       int    `json:"stock"`
}

type productResp struct {
    TicketID    uint64           `json:"ticketId"`
    TicketType  model.TicketType `json:"ticketType"`
    TicketCount int              `json:"ticketCount"`
    Price       int64            `json:"price"`
    Slots       []slotResp       `json:"slots"`
}

// Products: GET /api/tickets/products
func (h *CatalogHandler) Products(c echo.Context) error {
    products, err := h.tickets.Products(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]productResp, 0, len(products))
    for _, p := range products {
        slots := make([]slotResp, 0, len(p.Slots))
        for _, s := range p.Slots {
            slots = append(slots, slotResp{ID: s.ID, AvailableAt: s.AvailableAt.Format("2006-01-02"), Stock: s.Stock})
        }
        out = append(out, productResp{
            TicketID:    p.ID,
            TicketType:  p.TicketType,
            TicketCount: p.TicketCount,
            Price:       p.Price,
            Slots:       slots,
        })
    }
    return c.JSON(http.StatusOK, out)
}

type orderResp struct {
    TicketOrderID      uint64            `json:"ticketOrderId"`
    TicketManagementID uint64            `json:"ticketManagementId"`
    TicketType         model.TicketType  `json:"ticketType,omitempty"`
    ActiveStatus       model.OrderStatus `json:"activeStatus"`
    PaymentDate        string            `json:"paymentDate"`
    AvailableAt        *string           `json:"availableAt"`
}

// MyTickets: GET /api/tickets/my
func (h *CatalogHandler) MyTickets(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return respondError(c, apperror.ErrTokenMissing)
    }
    orders, err := h.tickets.Upcoming(c.Request().Context(), uid)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]orderResp, 0, len(orders))
    for _, o := range orders {
        out = append(out, toOrderResp(o))
    }
    return c.JSON(http.StatusOK, out)
}

func toOrderResp(o model.TicketOrder) orderResp {
    r := orderResp{
        TicketOrderID:      o.ID,
        TicketManagementID: o.TicketManagementID,
        TicketType:         o.TicketType,
        ActiveStatus:       o.ActiveStatus,
        PaymentDate:        o.PaymentDate.Format("2006-01-02T15:04:05"),
    }
    if o.AvailableAt != nil {
        d := o.AvailableAt.Format("2006-01-02")
        r.AvailableAt = &d
    }
    return r
}
