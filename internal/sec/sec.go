// Package sec provides the credential-checking primitives for the web
// application.
//
// Passwords are stored as bcrypt hashes. The encoded hash carries the
// algorithm, cost, and salt, so verification is self-describing and the cost
// can be raised later without invalidating existing rows.
//
// # Components
//
//   - [Authenticate]: Validates a username/password pair against the user store
//   - [HashPassword], [ComparePassword]: bcrypt password hashing utilities
package sec
