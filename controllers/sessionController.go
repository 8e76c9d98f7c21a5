package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/services"
)

type OpenSessionInput struct {
	TableID    string          `json:"table_id" validate:"required,uuid"`
	CustomerID string          `json:"customer_id" validate:"omitempty,uuid"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
}

type OrderLineInput struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"gte=1"`
}

type AddOrderInput struct {
	Note  string           `json:"note" validate:"max=500"`
	Items []OrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type MergeInput struct {
	SourceSessionIDs []string `json:"source_session_ids" validate:"required,min=1,dive,uuid"`
	TargetSessionID  string   `json:"target_session_id" validate:"required,uuid"`
}

type TransferInput struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"gte=1"`
}

type SplitSessionInput struct {
	Items           []TransferInput `json:"items" validate:"required,min=1,dive"`
	TargetSessionID string          `json:"target_session_id" validate:"omitempty,uuid"`
	TargetTableID   string          `json:"target_table_id" validate:"omitempty,uuid"`
}

// SessionView is a session with everything billed on it.
type SessionView struct {
	models.TableSession
	Orders         []models.Order   `json:"orders"`
	Invoices       []models.Invoice `json:"invoices"`
	MergedSessions []string         `json:"merged_session_ids"`
}

func (a *API) OpenSession(c *fiber.Ctx) error {
	var data OpenSessionInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	out, err := a.svc.OpenSession(c.UserContext(), services.OpenSessionRequest{
		TableID:    data.TableID,
		CustomerID: data.CustomerID,
		EmployeeID: middlewares.ActorID(c),
		Discount:   data.Discount,
		Tax:        data.Tax,
		ActorID:    middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, out)
}

func (a *API) GetSession(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := conn(c)
	if err != nil {
		return err
	}

	var view SessionView
	if err := db.First(&view.TableSession, "id = ?", id).Error; err != nil {
		return notFound(err, "session")
	}
	if err := db.Preload("Items").Where("table_session_id = ?", id).Order("created_at, id").Find(&view.Orders).Error; err != nil {
		return err
	}
	if err := db.Preload("Payments").Where("table_session_id = ?", id).Order("created_at, id").Find(&view.Invoices).Error; err != nil {
		return err
	}
	err = db.Model(&models.TableSession{}).
		Where("merged_into_session_id = ? AND status = ?", id, models.SessionMerged).
		Pluck("id", &view.MergedSessions).Error
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, view)
}

func (a *API) AddOrder(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data AddOrderInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	lines := make([]services.OrderLine, 0, len(data.Items))
	for _, it := range data.Items {
		lines = append(lines, services.OrderLine{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	out, err := a.svc.AddOrder(c.UserContext(), services.AddOrderRequest{
		SessionID: id,
		Note:      data.Note,
		Lines:     lines,
		ActorID:   middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, out)
}

func (a *API) MergeSessions(c *fiber.Ctx) error {
	var data MergeInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	out, err := a.svc.Merge(c.UserContext(), services.MergeRequest{
		SourceSessionIDs: data.SourceSessionIDs,
		TargetSessionID:  data.TargetSessionID,
		ActorID:          middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (a *API) SplitSession(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data SplitSessionInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	items := make([]services.TransferItem, 0, len(data.Items))
	for _, it := range data.Items {
		items = append(items, services.TransferItem{OrderItemID: it.OrderItemID, Quantity: it.Quantity})
	}
	out, err := a.svc.SplitSession(c.UserContext(), services.SplitSessionRequest{
		SourceSessionID: id,
		Items:           items,
		TargetSessionID: data.TargetSessionID,
		TargetTableID:   data.TargetTableID,
		ActorID:         middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (a *API) UnmergeSession(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	out, err := a.svc.Unmerge(c.UserContext(), services.UnmergeRequest{
		MergedSessionID: id,
		ActorID:         middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}
