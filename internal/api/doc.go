// Package api serves Spool over HTTP. It translates store models into
// transport-friendly DTOs and exposes album browsing, ranged track
// streaming, live import progress over a websocket, and import submission.
//
// # Routes
//
//	GET  /api/health
//	GET  /api/albums[?status=complete]
//	GET  /api/albums/{id}
//	GET  /api/albums/{id}/tracks
//	GET  /api/albums/{id}/events[?track=ID]   (websocket)
//	GET  /api/tracks/{id}/stream              (Range requests supported)
//	POST /api/imports
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Status
// enums are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Websocket messages are progress.Event values encoded as JSON,
// one per text frame; the socket closes after the album's terminal event.
//
// Imports submitted over HTTP run on the server's lifetime context, not the
// request's, so they keep going after the POST returns.
package api
