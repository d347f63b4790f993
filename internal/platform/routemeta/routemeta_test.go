package routemeta

import (
	"net/http"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Route{
		Method: http.MethodGet, Path: "/api/v1/patients/:id",
		Resource: "patient", PatientScoped: true, PatientParam: "id",
	})

	rt, ok := reg.Lookup(http.MethodGet, "/api/v1/patients/:id")
	if !ok {
		t.Fatal("expected route to be found")
	}
	if !rt.PatientScoped || rt.PatientParam != "id" {
		t.Errorf("unexpected metadata: %+v", rt)
	}

	// Same path, different method is a different route.
	if _, ok := reg.Lookup(http.MethodDelete, "/api/v1/patients/:id"); ok {
		t.Error("expected lookup miss for unregistered method")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Route{Method: http.MethodGet, Path: "/health", Public: false})
	reg.Register(Route{Method: http.MethodGet, Path: "/health", Public: true})

	if !reg.IsPublic(http.MethodGet, "/health") {
		t.Error("expected last registration to win")
	}
}

func TestIsPublicUnknownRoute(t *testing.T) {
	reg := NewRegistry()
	if reg.IsPublic(http.MethodGet, "/nope") {
		t.Error("unknown routes must not be public")
	}
}

func TestEntityFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/v1/appointments/123/status", "appointments"},
		{"/api/v1/patients", "patients"},
		{"/health", "health"},
		{"/", "unknown"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		if got := EntityFromPath(tc.path); got != tc.want {
			t.Errorf("EntityFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
