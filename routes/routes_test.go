package routes

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-backend/controllers"
	"restaurant-backend/database/dbtest"
	"restaurant-backend/middlewares"
	"restaurant-backend/services"
)

var secret = []byte("test-secret")

type reply struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Data    json.RawMessage     `json:"data"`
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newClient(t *testing.T) *client {
	t.Helper()
	db := dbtest.New(t)
	log := zap.NewNop()
	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler(log)})
	Register(app, db, controllers.New(services.NewService(db, log), secret, log), secret, log)
	return &client{t: t, app: app}
}

func (c *client) do(method, path, body string, headers ...string) (int, reply) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var r reply
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&r))
	return resp.StatusCode, r
}

// ok sends the request, expects the given status and decodes data into out.
func (c *client) ok(status int, method, path, body string, out any) {
	c.t.Helper()
	got, r := c.do(method, path, body)
	require.Equal(c.t, status, got, "%s %s: %s %v", method, path, r.Message, r.Errors)
	require.True(c.t, r.Success)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(r.Data, out))
	}
}

func (c *client) signUp(email string) {
	c.t.Helper()
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/registration",
		`{"first_name":"Ada","last_name":"Tester","email":"`+email+`","password":"secret123","password_confirm":"secret123"}`, nil)
	var login struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	c.ok(fiber.StatusOK, fiber.MethodPost, "/api/login", `{"email":"`+email+`","password":"secret123"}`, &login)
	require.NotEmpty(c.t, login.Token)
	c.token = login.Token
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, decimal.RequireFromString(want).StringFixed(2), got.StringFixed(2))
}

type idOnly struct {
	ID string `json:"id"`
}

type opened struct {
	Session idOnly `json:"session"`
	Invoice idOnly `json:"invoice"`
}

func (c *client) openAt(table string) opened {
	c.t.Helper()
	var t idOnly
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/tables", `{"name":"`+table+`","seats":4}`, &t)
	var out opened
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/sessions", `{"table_id":"`+t.ID+`","tax":"10"}`, &out)
	return out
}

func (c *client) order(sessionID, menuItemID string, qty string) {
	c.t.Helper()
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/sessions/"+sessionID+"/orders",
		`{"items":[{"menu_item_id":"`+menuItemID+`","quantity":`+qty+`}]}`, nil)
}

func (c *client) menu() string {
	c.t.Helper()
	var items []idOnly
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/menu-items", `[{"name":"Pho","unit_price":"12.50"}]`, &items)
	require.Len(c.t, items, 1)
	return items[0].ID
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	c := newClient(t)
	status, r := c.do(fiber.MethodGet, "/api/tables", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, r.Success)
}

func TestFirstUserIsAdminLaterUsersAreWaiters(t *testing.T) {
	c := newClient(t)
	var first, second struct {
		Role string `json:"role"`
	}
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/registration",
		`{"first_name":"A","last_name":"B","email":"boss@example.com","password":"secret123","password_confirm":"secret123"}`, &first)
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/registration",
		`{"first_name":"C","last_name":"D","email":"floor@example.com","password":"secret123","password_confirm":"secret123"}`, &second)
	assert.Equal(t, "admin", first.Role)
	assert.Equal(t, "waiter", second.Role)

	status, r := c.do(fiber.MethodPost, "/api/login", `{"email":"boss@example.com","password":"wrong"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, r.Success)
}

func TestMergeAndUnmergeOverHTTP(t *testing.T) {
	c := newClient(t)
	c.signUp("boss@example.com")
	item := c.menu()

	a := c.openAt("T1")
	b := c.openAt("T2")
	c.order(a.Session.ID, item, "2")
	c.order(b.Session.ID, item, "1")

	var merged struct {
		Invoice struct {
			ID          string          `json:"id"`
			TotalAmount decimal.Decimal `json:"total_amount"`
			FinalAmount decimal.Decimal `json:"final_amount"`
		} `json:"invoice"`
		MergedSessionIDs []string `json:"merged_session_ids"`
	}
	c.ok(fiber.StatusOK, fiber.MethodPost, "/api/sessions/merge",
		`{"source_session_ids":["`+b.Session.ID+`"],"target_session_id":"`+a.Session.ID+`"}`, &merged)
	assert.Equal(t, []string{b.Session.ID}, merged.MergedSessionIDs)
	assertMoney(t, "37.50", merged.Invoice.TotalAmount)
	assertMoney(t, "41.25", merged.Invoice.FinalAmount)

	var view struct {
		Status         string   `json:"status"`
		MergedSessions []string `json:"merged_session_ids"`
		Orders         []idOnly `json:"orders"`
	}
	c.ok(fiber.StatusOK, fiber.MethodGet, "/api/sessions/"+a.Session.ID, "", &view)
	assert.Equal(t, []string{b.Session.ID}, view.MergedSessions)
	assert.Len(t, view.Orders, 2)

	// a waiter may not unmerge
	admin := c.token
	c.signUp("floor@example.com")
	status, r := c.do(fiber.MethodPost, "/api/sessions/"+a.Session.ID+"/unmerge", "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.False(t, r.Success)

	c.token = admin
	var undone struct {
		RestoredInvoiceIDs []string `json:"restored_invoice_ids"`
		MovedOrders        int64    `json:"moved_orders"`
	}
	c.ok(fiber.StatusOK, fiber.MethodPost, "/api/sessions/"+a.Session.ID+"/unmerge", "", &undone)
	assert.Equal(t, []string{b.Invoice.ID}, undone.RestoredInvoiceIDs)
	assert.EqualValues(t, 1, undone.MovedOrders)
}

func TestEngineErrorsUseEnvelope(t *testing.T) {
	c := newClient(t)
	c.signUp("boss@example.com")
	a := c.openAt("T1")

	status, r := c.do(fiber.MethodPost, "/api/sessions/merge",
		`{"source_session_ids":["`+uuid.NewString()+`"],"target_session_id":"`+a.Session.ID+`"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, r.Success)
	assert.NotEmpty(t, r.Message)

	status, r = c.do(fiber.MethodPost, "/api/sessions/"+a.Session.ID+"/unmerge", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.False(t, r.Success)

	status, r = c.do(fiber.MethodGet, "/api/invoice/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, r.Success)

	status, r = c.do(fiber.MethodPost, "/api/sessions", `{"table_id":"nope"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, r.Errors, "table_id")
}

func TestPaymentsPromotionsAndSplits(t *testing.T) {
	c := newClient(t)
	c.signUp("boss@example.com")
	item := c.menu()
	a := c.openAt("T1")
	c.order(a.Session.ID, item, "4") // 50.00, +10% tax

	type invoiceView struct {
		Status      string          `json:"status"`
		FinalAmount decimal.Decimal `json:"final_amount"`
		Discount    decimal.Decimal `json:"discount"`
	}

	var promo struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/promotions", `{"code":"happy10","name":"Happy hour","rate":"10"}`, &promo)
	assert.Equal(t, "HAPPY10", promo.Code)

	var inv invoiceView
	c.ok(fiber.StatusOK, fiber.MethodPost, "/api/invoices/"+a.Invoice.ID+"/promotions", `{"code":"happy10"}`, &inv)
	assertMoney(t, "10", inv.Discount)
	assertMoney(t, "49.50", inv.FinalAmount)

	status, r := c.do(fiber.MethodPost, "/api/invoices/"+a.Invoice.ID+"/split",
		`{"splits":[{"percentage":"60"},{"percentage":"40"}]}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.False(t, r.Success)

	var split struct {
		Children []invoiceView `json:"children"`
	}
	c.ok(fiber.StatusOK, fiber.MethodPost, "/api/invoices/"+a.Invoice.ID+"/split", `{"splits":[{"percentage":"50"}]}`, &split)
	require.Len(t, split.Children, 1)
	assert.Equal(t, "unpaid", split.Children[0].Status)

	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/invoices/"+a.Invoice.ID+"/payments", `{"amount":"5","method":"cash"}`, &inv)
	assert.Equal(t, "partially_paid", inv.Status)

	var payments []struct {
		Amount decimal.Decimal `json:"amount"`
		Status string          `json:"status"`
	}
	c.ok(fiber.StatusOK, fiber.MethodGet, "/api/invoices/"+a.Invoice.ID+"/payments", "", &payments)
	require.Len(t, payments, 1)
	assert.Equal(t, "completed", payments[0].Status)
	assertMoney(t, "5", payments[0].Amount)

	var all []idOnly
	c.ok(fiber.StatusOK, fiber.MethodGet, "/api/invoices?session_id="+a.Session.ID, "", &all)
	assert.Len(t, all, 2)
}

func TestIdempotentSessionOpen(t *testing.T) {
	c := newClient(t)
	c.signUp("boss@example.com")
	var table idOnly
	c.ok(fiber.StatusCreated, fiber.MethodPost, "/api/tables", `{"name":"T9","seats":2}`, &table)

	body := `{"table_id":"` + table.ID + `"}`
	status, first := c.do(fiber.MethodPost, "/api/sessions", body, middlewares.IdempotencyHeader, "open-t9")
	require.Equal(t, fiber.StatusCreated, status)
	status, again := c.do(fiber.MethodPost, "/api/sessions", body, middlewares.IdempotencyHeader, "open-t9")
	require.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, string(first.Data), string(again.Data))
}
