// Package remote is the HTTP client for the Notion REST API.
//
// Requests are throttled by a token bucket and carry the bearer token and
// pinned API version on every call. Responses are decoded with the notion
// package; HTTP failures become *notion.APIError values whose Transient flag
// and RetryAfter hint drive the engine's retry policy. The client itself
// never retries.
package remote
