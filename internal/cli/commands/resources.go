package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/client"
)

func addPageFlags(cmd *cobra.Command, page *client.Page) {
	cmd.Flags().IntVar(&page.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&page.Limit, "limit", 10, "Items per page (max 100)")
}

// NewUsersCmd creates the users command group
func NewUsersCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var page client.Page
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users",
		Args:    cobra.NoArgs,
		RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
			return c.ListUsers(ctx, page)
		}),
	}
	addPageFlags(list, &page)

	var update client.UserUpdate
	updateCmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
			return c.UpdateUser(ctx, args[0], update)
		}),
	}
	updateCmd.Flags().StringVar(&update.Username, "username", "", "New username")
	updateCmd.Flags().StringVar(&update.Email, "email", "", "New email address")
	updateCmd.Flags().StringVar(&update.Phone, "phone", "", "New phone number")
	updateCmd.Flags().StringVar(&update.Status, "status", "", "New status: active, inactive or locked")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "get <user-id>",
			Short: "Show a user",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.GetUser(ctx, args[0])
			}),
		},
		updateCmd,
		&cobra.Command{
			Use:   "delete <user-id>",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.DeleteUser(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "assign-role <user-id> <role-id>",
			Short: "Grant a role to a user",
			Args:  cobra.ExactArgs(2),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.AssignRole(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove-role <user-id> <role-id>",
			Short: "Revoke a role from a user",
			Args:  cobra.ExactArgs(2),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.RemoveRole(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "permissions <user-id>",
			Short: "List the permissions a user holds",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.GetUserPermissions(ctx, args[0])
			}),
		},
	)

	return cmd
}

func addRoleFlags(cmd *cobra.Command, role *client.RoleInput) {
	cmd.Flags().StringVar(&role.Name, "name", "", "Role name")
	cmd.Flags().StringVar(&role.DisplayName, "display-name", "", "Display name")
	cmd.Flags().StringVar(&role.Description, "description", "", "Description")
}

// NewRolesCmd creates the roles command group
func NewRolesCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage roles",
	}

	var page client.Page
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List roles",
		Args:    cobra.NoArgs,
		RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
			return c.ListRoles(ctx, page)
		}),
	}
	addPageFlags(list, &page)

	var created client.RoleInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a role",
		Args:  cobra.NoArgs,
		RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
			return c.CreateRole(ctx, created)
		}),
	}
	addRoleFlags(create, &created)

	var updated client.RoleInput
	update := &cobra.Command{
		Use:   "update <role-id>",
		Short: "Update a role",
		Args:  cobra.ExactArgs(1),
		RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
			return c.UpdateRole(ctx, args[0], updated)
		}),
	}
	addRoleFlags(update, &updated)

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "get <role-id>",
			Short: "Show a role",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.GetRole(ctx, args[0])
			}),
		},
		create,
		update,
		&cobra.Command{
			Use:   "delete <role-id>",
			Short: "Delete a role",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.DeleteRole(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "assign-permission <role-id> <permission-id>",
			Short: "Add a permission to a role",
			Args:  cobra.ExactArgs(2),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.AssignPermission(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove-permission <role-id> <permission-id>",
			Short: "Remove a permission from a role",
			Args:  cobra.ExactArgs(2),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.RemovePermission(ctx, args[0], args[1])
			}),
		},
	)

	return cmd
}

func addPermissionFlags(cmd *cobra.Command, permission *client.PermissionInput) {
	cmd.Flags().StringVar(&permission.Name, "name", "", "Permission name")
	cmd.Flags().StringVar(&permission.Resource, "resource", "", "Resource, e.g. user")
	cmd.Flags().StringVar(&permission.Action, "action", "", "Action, e.g. READ")
	cmd.Flags().StringVar(&permission.Description, "description", "", "Description")
	cmd.Flags().StringVar(&permission.Category, "category", "", "Category")
}

// NewPermissionsCmd creates the permissions command group
func NewPermissionsCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Manage permissions",
	}

	var created client.PermissionInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a permission",
		Args:  cobra.NoArgs,
		RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
			return c.CreatePermission(ctx, created)
		}),
	}
	addPermissionFlags(create, &created)

	var updated client.PermissionInput
	update := &cobra.Command{
		Use:   "update <permission-id>",
		Short: "Update a permission",
		Args:  cobra.ExactArgs(1),
		RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
			return c.UpdatePermission(ctx, args[0], updated)
		}),
	}
	addPermissionFlags(update, &updated)

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List permissions",
			Args:    cobra.NoArgs,
			RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
				return c.ListPermissions(ctx)
			}),
		},
		&cobra.Command{
			Use:   "get <permission-id>",
			Short: "Show a permission",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.GetPermission(ctx, args[0])
			}),
		},
		create,
		update,
		&cobra.Command{
			Use:   "delete <permission-id>",
			Short: "Delete a permission",
			Args:  cobra.ExactArgs(1),
			RunE: call(g, func(ctx context.Context, c *client.Client, args []string) (*client.Response, error) {
				return c.DeletePermission(ctx, args[0])
			}),
		},
	)

	return cmd
}
