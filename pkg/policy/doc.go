// Package policy defines the insurance Policy record and the operations on it.
//
// A Policy has a system assigned ID, a customer name, a Type drawn from a
// closed enumeration and an expiry Date. Whether a policy is expired is never
// stored: View computes is_expired against the current date each time a
// policy is rendered, so a policy created as valid reads as expired later
// without any write.
//
// # Validation
//
// Draft holds the candidate values of a write. Draft.Validate enforces:
//
//   - customer_name is present, not blank and at most 255 characters
//   - policy_type is one of HOME, AUTO, HEALTH, TRAVEL, LIFE
//   - expiry_date is an ISO-8601 date that is not before today
//
// Failures are collected per field into a *ValidationError so several can
// be reported at once. Partial updates validate only the supplied fields,
// but a supplied expiry_date is always checked against the date of the
// update.
//
// # Storage
//
// Storage is implemented by the sqlite and memory backends in
// policy/storage. Service wraps a Storage with validation, tracing and
// logging.
package policy
