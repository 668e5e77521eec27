package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pageone/kundeklubb-backend/internal/fault"
)

func makeAppWithCheckoutHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, userID string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

const checkoutBody = `{"name":"Ola Nordmann","phone":"+4791234567","email":"ola@example.no","address":"Storgata 1","postcode":"0155","postPlace":"Oslo","shippingMethod":"ship"}`

func TestCheckoutRoutes_Flow(t *testing.T) {
	f := newFixture(t)
	if _, err := f.carts.Add(context.Background(), 7, "A", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	app := makeAppWithCheckoutHandler(NewHandler(f.svc))

	if code, _ := doJSON(t, app, "POST", "/api/v1/checkout", checkoutBody, ""); code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", code)
	}

	code, body := doJSON(t, app, "POST", "/api/v1/checkout", checkoutBody, "7")
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var started struct {
		CheckoutID string `json:"checkoutId"`
		URL        string `json:"url"`
		Total      int64  `json:"total"`
	}
	if err := json.Unmarshal([]byte(body), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.Total != 10000+19900 {
		t.Fatalf("expected total with shipping, got %d", started.Total)
	}
	if started.URL == "" || started.CheckoutID == "" {
		t.Fatalf("expected url and checkout id, got %s", body)
	}

	path := "/api/v1/checkout/" + started.CheckoutID
	code, body = doJSON(t, app, "POST", path+"/navigation", `{"url":"https://checkout.example/v1/view/step2"}`, "7")
	if code != fiber.StatusOK || !strings.Contains(body, `"pending"`) {
		t.Fatalf("expected pending, got %d: %s", code, body)
	}

	if code, _ := doJSON(t, app, "GET", path, "", "8"); code != fiber.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", code)
	}

	code, body = doJSON(t, app, "POST", path+"/navigation", `{"url":"https://shop.example/accept?status=success"}`, "7")
	if code != fiber.StatusOK || !strings.Contains(body, `"success"`) {
		t.Fatalf("expected success, got %d: %s", code, body)
	}
	waitSubmitted(t, f.svc, started.CheckoutID)

	code, body = doJSON(t, app, "GET", path, "", "7")
	if code != fiber.StatusOK || !strings.Contains(body, `"submission":"done"`) {
		t.Fatalf("expected finished submission, got %d: %s", code, body)
	}

	if code, _ := doJSON(t, app, "DELETE", path, "", "7"); code != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code, _ := doJSON(t, app, "GET", path, "", "7"); code != fiber.StatusNotFound {
		t.Fatalf("expected 404 after abandon, got %d", code)
	}
}

func TestCheckoutRoutes_Errors(t *testing.T) {
	f := newFixture(t)
	app := makeAppWithCheckoutHandler(NewHandler(f.svc))

	code, body := doJSON(t, app, "POST", "/api/v1/checkout", checkoutBody, "7")
	if code != fiber.StatusBadRequest || !strings.Contains(body, "cart") {
		t.Fatalf("expected 400 for empty cart, got %d: %s", code, body)
	}

	if _, err := f.carts.Add(context.Background(), 7, "A", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	code, body = doJSON(t, app, "POST", "/api/v1/checkout", `{"name":"Ola","shippingMethod":"pickup"}`, "7")
	if code != fiber.StatusBadRequest || !strings.Contains(body, "phone") {
		t.Fatalf("expected 400 for missing phone, got %d: %s", code, body)
	}

	f.payments.tokenErr = fault.New(fault.KindAuth, "payment.token", "unexpected status").WithStatus(401)
	code, body = doJSON(t, app, "POST", "/api/v1/checkout", checkoutBody, "7")
	if code != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", code, body)
	}
	if strings.Contains(body, "401") {
		t.Fatalf("provider details leaked: %s", body)
	}

	if code, _ := doJSON(t, app, "POST", "/api/v1/checkout/nope/navigation", `{"url":"x"}`, "7"); code != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown attempt, got %d", code)
	}
	if code, _ := doJSON(t, app, "POST", "/api/v1/checkout/nope/navigation", `{}`, "7"); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", code)
	}
}

func TestWriteError_MapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", ErrAttemptNotFound, fiber.StatusNotFound, "not found"},
		{"validation", fault.Validation("email", "is required"), fiber.StatusBadRequest, "email"},
		{"network", fault.Wrap(fault.KindNetwork, "payment.token", errors.New("dial tcp: refused")), fiber.StatusBadGateway, "payment provider unavailable"},
		{"upstream", fault.New(fault.KindUpstream, "backoffice.customer", "bad body"), fiber.StatusBadGateway, "upstream"},
		{"untyped", errors.New("pq: connection reset"), fiber.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return writeError(c, tc.err) })
			res, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			b, _ := io.ReadAll(res.Body)
			if res.StatusCode != tc.status || !strings.Contains(string(b), tc.body) {
				t.Fatalf("expected %d containing %q, got %d: %s", tc.status, tc.body, res.StatusCode, string(b))
			}
			if strings.Contains(string(b), "dial tcp") || strings.Contains(string(b), "pq:") {
				t.Fatalf("internal details leaked: %s", string(b))
			}
		})
	}
}
