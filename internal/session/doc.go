// Package session mounts and unmounts chat views.
//
// # Overview
//
// A Session is one mounted chat view: a workflow engine, the timer
// scheduler that paces it and the mutex that serializes both. The Hub
// indexes sessions by id, closes idle ones and tears everything down on
// shutdown.
//
//	hub := session.NewHub(cfg, broadcaster, metrics, logger)
//	s, err := hub.Open(ctx, def, i18n.DefaultContext())
//	err = s.Do(func(e *engine.Engine) error { return e.Submit(stepID, values) })
//	hub.Close(s.ID)
//
// Closing a session detaches its engine first, so a delayed step advance or
// chat reply that fires afterwards does nothing.
//
// # Cookies
//
// TokenSigner signs a short JWT naming the session id. The web layer stores
// it in a cookie so a session id typed into the address bar of another
// browser does not resolve. It is tamper-proofing only, not authentication.
package session
