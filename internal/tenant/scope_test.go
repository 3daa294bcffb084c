package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hr-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestFromIdentity(t *testing.T) {
	s, err := FromIdentity(auth.Identity{UserID: "u", OrganizationID: "o", Role: "admin"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.OrganizationID() != "o" || s.UserID() != "u" || s.Role() != "admin" {
		t.Fatalf("unexpected scope: %+v", s)
	}

	if _, err := FromIdentity(auth.Identity{UserID: "u"}); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
	if _, err := FromIdentity(auth.Identity{OrganizationID: "o"}); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
}

func TestFromContext(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant on bare context, got %v", err)
	}
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "u", OrganizationID: "o"})
	s, err := FromContext(ctx)
	if err != nil || s.OrganizationID() != "o" {
		t.Fatalf("unexpected scope %+v err %v", s, err)
	}
}

func TestBind_OverridesClientOrganization(t *testing.T) {
	s, _ := FromIdentity(auth.Identity{UserID: "u", OrganizationID: "org-x"})
	in := Filter{"_id": "e1", OrganizationField: "org-y"}

	out := s.Bind(in)
	if out[OrganizationField] != "org-x" {
		t.Fatalf("expected scope organization to win, got %v", out[OrganizationField])
	}
	if out["_id"] != "e1" {
		t.Fatalf("expected other predicates preserved")
	}
	if in[OrganizationField] != "org-y" {
		t.Fatalf("Bind must not mutate its input")
	}
}

func TestOwns(t *testing.T) {
	s, _ := FromIdentity(auth.Identity{UserID: "u", OrganizationID: "x"})
	if !s.Owns("x") || s.Owns("y") || s.Owns("") {
		t.Fatalf("unexpected ownership result")
	}
	if (Scope{}).Owns("") {
		t.Fatalf("zero scope must own nothing")
	}
}

func TestRequireOrganization(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(id *auth.Identity) int {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if id != nil {
				c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), *id))
			}
			c.Next()
		}, RequireOrganization(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w.Code
	}

	if code := run(&auth.Identity{UserID: "u", OrganizationID: "o"}); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := run(nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
