// Package handlers implements the REST resource for insurance policies.
//
//	GET    /policies/       list, optionally filtered
//	POST   /policies/       create
//	GET    /policies/{id}/  retrieve
//	PUT    /policies/{id}/  replace every writable field
//	PATCH  /policies/{id}/  change supplied fields
//	DELETE /policies/{id}/  delete
//	OPTIONS on either path  describe the resource and its writable fields
//
// Bodies may be JSON, URL-encoded forms or multipart forms. Rejected writes
// answer 400 with a map from field name to reasons; unknown or non-numeric
// IDs answer 404 with {"detail": "No Policy matches the given query."}.
package handlers
