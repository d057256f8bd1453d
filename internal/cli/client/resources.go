package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// Page selects a slice of a list endpoint. Zero values are omitted and the
// server defaults apply.
type Page struct {
	Page  int `validate:"gte=0"`
	Limit int `validate:"gte=0,lte=100"`
}

func (p Page) query() string {
	values := url.Values{}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// UserUpdate holds the user fields to change. Empty fields are left as they are.
type UserUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=active inactive locked"`
}

// RoleInput is the body for creating or updating a role
type RoleInput struct {
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// PermissionInput is the body for creating or updating a permission
type PermissionInput struct {
	Name        string `json:"name" validate:"required"`
	Resource    string `json:"resource" validate:"required"`
	Action      string `json:"action" validate:"required"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

var errMissingID = errors.New("id is required")

// path joins escaped path segments under a collection. An empty segment is rejected.
func path(collection string, segments ...string) (string, error) {
	p := collection
	for _, s := range segments {
		if s == "" {
			return "", errMissingID
		}
		p += "/" + url.PathEscape(s)
	}
	return p, nil
}

func (c *Client) list(ctx context.Context, collection string, page Page) (*Response, error) {
	if err := c.validate.Struct(page); err != nil {
		return c.invalid(err)
	}
	return c.Request(ctx, http.MethodGet, collection+page.query(), nil, true)
}

func (c *Client) call(ctx context.Context, method string, body any, collection string, segments ...string) (*Response, error) {
	endpoint, err := path(collection, segments...)
	if err != nil {
		return c.invalid(err)
	}
	if body != nil {
		if err := c.validate.Struct(body); err != nil {
			return c.invalid(err)
		}
	}
	return c.Request(ctx, method, endpoint, body, true)
}

// ListUsers returns one page of users
func (c *Client) ListUsers(ctx context.Context, page Page) (*Response, error) {
	return c.list(ctx, "/users", page)
}

// GetUser returns a single user
func (c *Client) GetUser(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodGet, nil, "/users", id)
}

// UpdateUser changes a user's profile fields
func (c *Client) UpdateUser(ctx context.Context, id string, update UserUpdate) (*Response, error) {
	return c.call(ctx, http.MethodPut, update, "/users", id)
}

// DeleteUser removes a user
func (c *Client) DeleteUser(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodDelete, nil, "/users", id)
}

type roleAssignment struct {
	RoleID string `json:"role_id" validate:"required"`
}

// AssignRole grants a role to a user
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) (*Response, error) {
	return c.call(ctx, http.MethodPost, roleAssignment{RoleID: roleID}, "/users", userID, "roles")
}

// RemoveRole revokes a role from a user
func (c *Client) RemoveRole(ctx context.Context, userID, roleID string) (*Response, error) {
	return c.call(ctx, http.MethodDelete, nil, "/users", userID, "roles", roleID)
}

// GetUserPermissions returns the permissions a user holds through their roles
func (c *Client) GetUserPermissions(ctx context.Context, userID string) (*Response, error) {
	return c.call(ctx, http.MethodGet, nil, "/users", userID, "permissions")
}

// ListRoles returns one page of roles
func (c *Client) ListRoles(ctx context.Context, page Page) (*Response, error) {
	return c.list(ctx, "/roles", page)
}

// CreateRole creates a role
func (c *Client) CreateRole(ctx context.Context, role RoleInput) (*Response, error) {
	return c.call(ctx, http.MethodPost, role, "/roles")
}

// GetRole returns a single role
func (c *Client) GetRole(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodGet, nil, "/roles", id)
}

// UpdateRole replaces a role's name and description
func (c *Client) UpdateRole(ctx context.Context, id string, role RoleInput) (*Response, error) {
	return c.call(ctx, http.MethodPut, role, "/roles", id)
}

// DeleteRole removes a role
func (c *Client) DeleteRole(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodDelete, nil, "/roles", id)
}

type permissionAssignment struct {
	PermissionID string `json:"permission_id" validate:"required"`
}

// AssignPermission adds a permission to a role
func (c *Client) AssignPermission(ctx context.Context, roleID, permissionID string) (*Response, error) {
	return c.call(ctx, http.MethodPost, permissionAssignment{PermissionID: permissionID}, "/roles", roleID, "permissions")
}

// RemovePermission removes a permission from a role
func (c *Client) RemovePermission(ctx context.Context, roleID, permissionID string) (*Response, error) {
	return c.call(ctx, http.MethodDelete, nil, "/roles", roleID, "permissions", permissionID)
}

// ListPermissions returns all permissions
func (c *Client) ListPermissions(ctx context.Context) (*Response, error) {
	return c.Request(ctx, http.MethodGet, "/permissions", nil, true)
}

// CreatePermission creates a permission
func (c *Client) CreatePermission(ctx context.Context, permission PermissionInput) (*Response, error) {
	return c.call(ctx, http.MethodPost, permission, "/permissions")
}

// GetPermission returns a single permission
func (c *Client) GetPermission(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodGet, nil, "/permissions", id)
}

// UpdatePermission replaces a permission's fields
func (c *Client) UpdatePermission(ctx context.Context, id string, permission PermissionInput) (*Response, error) {
	return c.call(ctx, http.MethodPut, permission, "/permissions", id)
}

// DeletePermission removes a permission
func (c *Client) DeletePermission(ctx context.Context, id string) (*Response, error) {
	return c.call(ctx, http.MethodDelete, nil, "/permissions", id)
}
