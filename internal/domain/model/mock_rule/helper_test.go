package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoutePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "simple path", path: "/api/users", expected: "/api/users"},
		{name: "missing leading slash", path: "api/users", expected: "/api/users"},
		{name: "trailing slash", path: "/api/users/", expected: "/api/users"},
		{name: "duplicate slashes", path: "//api//users", expected: "/api/users"},
		{name: "root", path: "/", expected: "/"},
		{name: "empty", path: "  ", expected: ""},
		{name: "params kept", path: "/api/users/:id/orders/{orderId}", expected: "/api/users/:id/orders/{orderId}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRoutePath(tt.path))
		})
	}
}

func TestParamName(t *testing.T) {
	tests := []struct {
		segment string
		name    string
		ok      bool
	}{
		{segment: ":id", name: "id", ok: true},
		{segment: "{userId}", name: "userId", ok: true},
		{segment: "users", ok: false},
		{segment: ":", ok: false},
		{segment: "{}", ok: false},
		{segment: "{id", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			name, ok := ParamName(tt.segment)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestRouteKeys(t *testing.T) {
	assert.Equal(t, "GET:/api/users", RouteKey("get", "/api/users"))
	assert.Equal(t, "u1|/api/users|POST", OwnerRouteKey("u1", "/api/users", "post"))
	assert.True(t, IsParamPath("/users/{id}"))
	assert.False(t, IsParamPath("/users/list"))
}

func TestRouteShape(t *testing.T) {
	assert.Equal(t, RouteShape("/users/:id"), RouteShape("/users/{uid}"))
	assert.Equal(t, "/users/:/orders/:", RouteShape("/users/{uid}/orders/:oid"))
	assert.Equal(t, "/users/me", RouteShape("/users/me"))
	assert.NotEqual(t, RouteShape("/users/me"), RouteShape("/users/:id"))
	assert.Equal(t, "/", RouteShape("/"))
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
	}{
		{"application/json", "application/json"},
		{"Application/JSON; charset=utf-8", "application/json"},
		{" text/html ;charset=utf-8", "text/html"},
		{"text/plain;;bad", "text/plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.expected, MediaType(tt.contentType))
		})
	}
}

func TestProbePath(t *testing.T) {
	assert.Equal(t, "/users/probe/orders", ProbePath("/users/:id/orders"))
	assert.Equal(t, "/users/probe", ProbePath("/users/{id}"))
	assert.Equal(t, "/", ProbePath("/"))
}
