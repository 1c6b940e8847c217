// Package projects owns projects, their members, and the project access
// resolver every project-scoped resource goes through.
//
// A resource handler resolves the project inside the caller's organization
// and then checks one capability:
//
//	project, err := access.GetProject(ctx, orgID, projectID)
//	if err != nil {
//		return err
//	}
//	if err := access.EnsurePermission(ctx, project, userID, projects.CanEditTasks,
//		"you do not have permission to update tasks in this project"); err != nil {
//		return err
//	}
//
// The project manager and creator pass every check without a membership row.
package projects
