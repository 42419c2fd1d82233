package api

import "github.com/stacksapp/stacks-server/internal/service"

// Services bundles the service layer for handler access.
type Services struct {
	Instance *service.InstanceService
	Auth     *service.AuthService
	Session  *service.SessionService
	Book     *service.BookService
	Author   *service.AuthorService
	Library  *service.LibraryService
	Search   *service.SearchService
	Admin    *service.AdminService
}
