// Package conversation fans out live chat-view updates to browser streams.
//
// # Overview
//
// Every mounted chat view has a session id. The engine behind it reports
// each appended message and each state change through an engine.Listener;
// Listener turns those callbacks into Events and publishes them on the
// EventBroadcaster under the session id. The web layer subscribes once per
// open SSE stream.
//
//	b := conversation.NewEventBroadcaster(logger)
//	eng, _ := engine.New(def, engine.WithListener(conversation.NewListener(b, sid)))
//	ch, subID := b.Subscribe(ctx, sid)
//
// # Delivery
//
// Publish never blocks. A subscriber whose buffer is full misses the event
// and is expected to resync from the state endpoint.
package conversation
