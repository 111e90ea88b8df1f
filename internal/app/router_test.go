package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/doha-roastery/roastery/internal/auth"
	"github.com/doha-roastery/roastery/internal/inventory"
	"github.com/doha-roastery/roastery/internal/masterdata/beans"
	"github.com/doha-roastery/roastery/internal/masterdata/locations"
	"github.com/doha-roastery/roastery/internal/masterdata/products"
	"github.com/doha-roastery/roastery/internal/masterdata/templates"
	"github.com/doha-roastery/roastery/internal/pos"
	"github.com/doha-roastery/roastery/internal/rbac"
	reporthttp "github.com/doha-roastery/roastery/internal/reports/http"
	"github.com/doha-roastery/roastery/internal/roasting"
	"github.com/doha-roastery/roastery/internal/shared"
	"github.com/doha-roastery/roastery/jobs"
)

const testSessionID = "sess-route-test"

// newTestRouter builds the full router with a session of the given role
// pre-seeded in redis. Handlers carry no services; requests that pass
// the role gates fail later on decoding, which is enough to tell a 403
// from a request the gate admitted.
func newTestRouter(t *testing.T, role string) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	payload := `{"values":{"csrf_token":"test-token"},"user_id":"u-1","user_name":"Fatima","role":"` + role + `"}`
	require.NoError(t, mr.Set("session:"+testSessionID, payload))

	logger := NewLogger(&Config{LogFormat: "json"}, "test")
	sessionManager := shared.NewSessionManager(client, "roastery_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("secret")

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBAC:           rbac.Middleware{Logger: logger},

		AuthHandler:      auth.NewHandler(logger, nil, sessionManager, csrfManager),
		BeansHandler:     beans.NewHandler(logger, nil),
		TemplatesHandler: templates.NewHandler(logger, nil),
		ProductsHandler:  products.NewHandler(logger, nil),
		LocationsHandler: locations.NewHandler(logger, nil),
		RoastingHandler:  roasting.NewHandler(logger, nil),
		InventoryHandler: inventory.NewHandler(logger, nil),
		POSHandler:       pos.NewHandler(logger, nil),
		ReportsHandler:   reporthttp.NewHandler(logger, nil),
		JobHandler:       jobs.NewHandler(&asynq.Inspector{}, logger),
	})
}

func doRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.AddCookie(&http.Cookie{Name: "roastery_session", Value: testSessionID})
	req.Header.Set(shared.CSRFHeader, "test-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReceiptReprintRequiresManager(t *testing.T) {
	cashier := newTestRouter(t, string(auth.RoleCashier))

	rec := doRequest(t, cashier, http.MethodPost, "/pos/sales/sale-1/reprints")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The rest of the register stays open to cashiers.
	rec = doRequest(t, cashier, http.MethodPost, "/pos/sales")
	require.NotEqual(t, http.StatusForbidden, rec.Code)

	manager := newTestRouter(t, string(auth.RoleManager))
	rec = doRequest(t, manager, http.MethodPost, "/pos/sales/sale-1/reprints")
	require.NotEqual(t, http.StatusForbidden, rec.Code)
}

func TestReturnResolutionRequiresManager(t *testing.T) {
	cashier := newTestRouter(t, string(auth.RoleCashier))

	rec := doRequest(t, cashier, http.MethodPost, "/pos/returns/ret-1/resolve")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, cashier, http.MethodPost, "/pos/returns")
	require.NotEqual(t, http.StatusForbidden, rec.Code)
}
