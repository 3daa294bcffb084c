package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hr-platform/internal/accounts"
	"hr-platform/internal/auth"
	"hr-platform/internal/config"
	"hr-platform/internal/metrics"
	"hr-platform/internal/rbac"
	"hr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "routes-test-secret-0123456789abcdef"

type testServer struct {
	router    *gin.Engine
	authority *auth.Authority
	accounts  *accounts.MemoryRepo
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memoryStores()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	authority := auth.NewAuthority(config.AuthConfig{JWTSecret: testSecret})
	r := newRouter(app{
		log:       logger.Discard(),
		authority: authority,
		hasher:    auth.BcryptHasher{Cost: bcrypt.MinCost},
		throttle:  accounts.NewMemoryThrottle(5, time.Minute),
		stores:    st,
		metrics:   m,
		gatherer:  reg,
	})
	return testServer{
		router:    r,
		authority: authority,
		accounts:  st.accounts.(*accounts.MemoryRepo),
		metrics:   m,
		registry:  reg,
	}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID             string `json:"id"`
		OrganizationID string `json:"organization_id"`
	} `json:"user"`
}

func (s testServer) register(t *testing.T, email, org string) session {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name":              "Admin",
		"email":             email,
		"password":          "s3cret-pass",
		"organization_name": org,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	return decode[session](t, w)
}

type employeeJSON struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
}

func newEmployeeBody(email string) map[string]any {
	return map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      email,
		"department": "Engineering",
		"position":   "Engineer",
	}
}

func TestCreateEmployee_LandsInTokenOrganization(t *testing.T) {
	s := newTestServer(t)
	x := s.register(t, "x@example.com", "Org X")
	y := s.register(t, "y@example.com", "Org Y")

	body := newEmployeeBody("ada@example.com")
	body["organization_id"] = y.User.OrganizationID

	w := s.do(t, http.MethodPost, "/v1/employees", x.Token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	e := decode[employeeJSON](t, w)
	if e.OrganizationID != x.User.OrganizationID {
		t.Fatalf("employee landed in %q, want %q", e.OrganizationID, x.User.OrganizationID)
	}

	if w := s.do(t, http.MethodGet, "/v1/employees/"+e.ID, y.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant read: want 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/v1/employees/"+e.ID, y.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant delete: want 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/employees/"+e.ID, x.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("own read: want 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/v1/me", "/v1/employees", "/v1/teams", "/v1/assignments", "/v1/logs", "/v1/dashboard"} {
		if w := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: want 401, got %d", path, w.Code)
		}
	}
	if w := s.do(t, http.MethodGet, "/v1/me", "not-a-jwt", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: want 401, got %d", w.Code)
	}

	// A token without an organization is rejected as well.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"role":    rbac.RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if w := s.do(t, http.MethodGet, "/v1/me", tok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("org-less token: want 401, got %d", w.Code)
	}

	if got := testutil.ToFloat64(s.metrics.AuthRejections); got < 7 {
		t.Fatalf("expected rejections to be counted, got %v", got)
	}
}

func TestMemberCannotMutate(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@example.com", "Org X")

	s.accounts.PutUser(accounts.User{
		ID:             "member-1",
		OrganizationID: admin.User.OrganizationID,
		Name:           "Member",
		Email:          "member@example.com",
		Role:           rbac.RoleMember,
		IsActive:       true,
	})
	tok, err := s.authority.Issue(time.Now(), auth.Claim{UserID: "member-1", OrganizationID: admin.User.OrganizationID, Role: rbac.RoleMember})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if w := s.do(t, http.MethodPost, "/v1/employees", tok, newEmployeeBody("m@example.com")); w.Code != http.StatusForbidden {
		t.Fatalf("member create: want 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/employees", tok, nil); w.Code != http.StatusOK {
		t.Fatalf("member list: want 200, got %d", w.Code)
	}
}

func TestAssignmentsAndAuditTrail(t *testing.T) {
	s := newTestServer(t)
	x := s.register(t, "x@example.com", "Org X")

	w := s.do(t, http.MethodPost, "/v1/employees", x.Token, newEmployeeBody("ada@example.com"))
	emp := decode[employeeJSON](t, w)
	w = s.do(t, http.MethodPost, "/v1/teams", x.Token, map[string]any{"name": "Platform", "department": "Engineering"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create team: %d %s", w.Code, w.Body.String())
	}
	team := decode[struct {
		ID string `json:"id"`
	}](t, w)

	assign := map[string]string{"employee_id": emp.ID, "team_id": team.ID, "action": "assign"}
	if w := s.do(t, http.MethodPost, "/v1/assignments", x.Token, assign); w.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	assign["action"] = "swap"
	if w := s.do(t, http.MethodPost, "/v1/assignments", x.Token, assign); w.Code != http.StatusBadRequest {
		t.Fatalf("bad action: want 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/v1/logs?action=assignment_add", x.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs: %d %s", w.Code, w.Body.String())
	}
	logs := decode[struct {
		Logs []struct {
			Action         string `json:"action"`
			OrganizationID string `json:"organization_id"`
			User           *struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"logs"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}](t, w)
	if logs.Pagination.Total != 1 || len(logs.Logs) != 1 {
		t.Fatalf("expected one assignment_add entry, got %s", w.Body.String())
	}
	entry := logs.Logs[0]
	if entry.OrganizationID != x.User.OrganizationID || entry.User == nil || entry.User.Email != "x@example.com" {
		t.Fatalf("unexpected log entry: %s", w.Body.String())
	}

	if w := s.do(t, http.MethodGet, "/v1/logs?action=reboot", x.Token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action filter: want 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/v1/dashboard", x.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", w.Code, w.Body.String())
	}
	dash := decode[struct {
		TotalEmployees   int     `json:"total_employees"`
		TotalAssignments int     `json:"total_assignments"`
		Avg              float64 `json:"avg_teams_per_employee"`
	}](t, w)
	if dash.TotalEmployees != 1 || dash.TotalAssignments != 1 || dash.Avg != 1 {
		t.Fatalf("unexpected dashboard: %s", w.Body.String())
	}
}

func TestLoginErrorsAndLogout(t *testing.T) {
	s := newTestServer(t)
	x := s.register(t, "x@example.com", "Org X")

	w := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "x@example.com", "password": "wrong-pass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: want 401, got %d", w.Code)
	}
	w = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "X@example.com", "password": "s3cret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Again", "email": "x@example.com", "password": "s3cret-pass", "organization_name": "Other",
	}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate registration: want 409, got %d", w.Code)
	}

	if w := s.do(t, http.MethodPost, "/v1/auth/logout", "", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous logout: want 200, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/auth/logout", x.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: want 200, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/v1/logs?action=logout", x.Token, nil)
	if !strings.Contains(w.Body.String(), `"action":"logout"`) {
		t.Fatalf("expected logout record, got %s", w.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: want 200, got %d", w.Code)
	}
	s.do(t, http.MethodGet, "/v1/me", "", nil)
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hr_auth_rejections_total") {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}
}

func TestListEmployees_HugePage(t *testing.T) {
	s := newTestServer(t)
	x := s.register(t, "x@example.com", "Org X")
	if w := s.do(t, http.MethodPost, "/v1/employees", x.Token, newEmployeeBody("ada@example.com")); w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	for _, path := range []string{
		"/v1/employees?page=3689348814741910320&limit=100",
		"/v1/teams?page=3689348814741910320&limit=100",
		"/v1/logs?page=3689348814741910320&limit=100",
	} {
		w := s.do(t, http.MethodGet, path, x.Token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: want 200, got %d %s", path, w.Code, w.Body.String())
		}
	}

	got := decode[struct {
		Employees  []employeeJSON `json:"employees"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}](t, s.do(t, http.MethodGet, "/v1/employees?page=3689348814741910320&limit=100", x.Token, nil))
	if len(got.Employees) != 0 || got.Pagination.Total != 1 {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestNotFoundIsUniform(t *testing.T) {
	s := newTestServer(t)
	x := s.register(t, "x@example.com", "Org X")
	y := s.register(t, "y@example.com", "Org Y")

	w := s.do(t, http.MethodPost, "/v1/employees", y.Token, newEmployeeBody("bob@example.com"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	foreign := decode[employeeJSON](t, w)

	for _, w := range []*httptest.ResponseRecorder{
		s.do(t, http.MethodGet, "/v1/employees/"+foreign.ID, x.Token, nil),
		s.do(t, http.MethodPost, "/v1/teams", x.Token, map[string]any{
			"name":         "Platform",
			"department":   "Engineering",
			"team_lead_id": foreign.ID,
		}),
	} {
		if w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d %s", w.Code, w.Body.String())
		}
		if body := decode[map[string]string](t, w); body["error"] != "not found" {
			t.Fatalf("unexpected error body: %v", body)
		}
	}
}
