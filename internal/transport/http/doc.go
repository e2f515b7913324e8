// Package http implements the HTTP handlers of the attendx API. Handlers
// stay thin: they bind path and query parameters into the request structs
// of pkg/contracts/api/v1, validate them, call a service and render the
// result as JSON.
//
// # Routes
//
//	POST   /api/uploads                           multipart field "file"
//	GET    /api/uploads/{id}                      upload metadata
//	DELETE /api/uploads/{id}
//	GET    /api/uploads/{id}/summary
//	GET    /api/uploads/{id}/enrolment/{level}
//	GET    /api/uploads/{id}/attendance?level=UG&year=1
//	GET    /api/uploads/{id}/submission?level=UG&year=1
//	GET    /api/uploads/{id}/at-risk?level=UG&year=1&course=C101
//	GET    /api/uploads/{id}/at-risk/export?level=UG&year=1&format=xlsx
//	GET    /api/uploads/{id}/dashboard
//	GET    /api/levels
//	GET    /api/health, /api/health/ready, /api/health/live
//	GET    /api/version
//	GET    /metrics
//
// # Error Handling
//
// Every failure is passed to errors.ErrorHandler and rendered as an RFC 7807
// problem:
//
//	{
//	    "type": "/errors/data/schema",
//	    "title": "Missing Column",
//	    "status": 422,
//	    "detail": "The uploaded data has no \"Submitted\" column",
//	    "instance": "/api/uploads/3f2c.../summary",
//	    "trace_id": "..."
//	}
//
// # Testing
//
// Handlers are tested with httptest against testify mocks of the service
// interfaces in interfaces.go.
package http
