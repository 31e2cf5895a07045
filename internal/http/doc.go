// Package http provides HTTP handlers and middleware for the payroll upload API.
//
// The router exposes the following endpoints:
//   - POST /payroll/uploads: multipart upload (`file`, `year`, `month`, optional
//     `duplicate_mode`). Parses and stages the workbook, responding 201 with
//     {"token","expires_at","summary","records"}. Monetary figures are masked
//     unless `?mask=false` is given.
//   - GET /payroll/uploads/{token}: returns the staged preview for review.
//     Unknown and expired tokens respond 404.
//   - POST /payroll/uploads/{token}/confirm: body {"idempotency_key",
//     "duplicate_mode"}. Persists the staged batch and responds 200 with the
//     per-row commit result. Replaying the same idempotency key returns the
//     stored result unchanged.
//   - DELETE /payroll/uploads/{token}: discards a staged preview. Always 204.
//   - GET /payroll/entries?year=&month=: lists persisted entries for a period.
//   - GET /healthz: liveness probe including a storage ping.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
