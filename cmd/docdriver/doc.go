// Package main hosts the docdriver entrypoint.
//
// Architecture overview:
//   - CLI: cobra commands (sync, ask) configured via Viper from file and
//     DOCDRIVER_* environment variables. Both commands share one batch
//     engine and differ only in how items are loaded and extracted.
//   - Session layer: a chromedp-controlled browser reuses a persisted
//     profile for authentication; the session manager rotates tabs after a
//     configurable number of successful items and aborts the run when the
//     application demands a fresh login.
//   - Item pipeline: skip check against the checkpoint, navigate, extract,
//     persist. Sync extraction walks a priority-ordered strategy chain
//     (rendered surface first, structured export endpoint via Colly as
//     fallback); ask extraction performs one conversational turn and cleans
//     interface chrome off the response.
//   - Persistence: extracted content lands as one file per item in the
//     output directory; the checkpoint is a single JSON document rewritten
//     atomically after every success, which makes reruns idempotent.
//   - Observability: zap structured logs, a colored console tally, and
//     Prometheus collectors served on a local debug listener when enabled.
package main
