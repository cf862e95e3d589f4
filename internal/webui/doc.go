// Package webui serves the browser surface of coven-wizard.
//
// # Overview
//
// Visitors pick a workflow from the list and start it, which mounts a chat
// view (a session.Session owning one engine) and binds the browser to it with
// a signed cookie. The chat view shows the conversation log top to bottom,
// the inline form under its prompt message, the panel pinned below the log,
// or the overlay as a modal that disables the message box.
//
// # Routes
//
//	GET  /                          redirect to /workflows
//	GET  /workflows                 workflow list
//	POST /workflows/{id}/start      mount a chat view
//	GET  /chat/{sid}                chat view
//	GET  /chat/{sid}/state          JSON snapshot and log (?since=N for new entries)
//	GET  /chat/{sid}/stream         server-sent events
//	GET  /chat/{sid}/deliverable    download the finished artifact
//	GET  /chat/{sid}/preview        sanitized HTML preview
//	POST /chat/{sid}/submit         submit the active form
//	POST /chat/{sid}/cancel         cancel the active form
//	POST /chat/{sid}/expand         move an inline form into the panel
//	POST /chat/{sid}/resume         prompt the current step again
//	POST /chat/{sid}/override       set the display override
//	POST /chat/{sid}/message        send a chat message
//	POST /chat/{sid}/close          unmount the chat view
//
// # Request Handling
//
// Every POST carries a double-submit CSRF token. Form posts also carry a
// per-render nonce; a nonce seen twice for the same session is answered with
// 409. Requests sent by htmx (HX-Request: true) get the conversation partial
// back; plain posts are redirected to the chat view on success. A submission
// with missing required fields is answered with 422 and the form re-rendered
// with the entered values and the missing labels.
package webui
