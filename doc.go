/*
Package espalier is a declarative dispatch frame for controllers of
long-lived, stateful interactive sessions: connections that are mounted once
and then receive a stream of named events over their lifetime.

A controller author declares plain named handler functions, one per mount
action and one per event, and the frame performs the rest: load-time
registration and validation, a fixed two-phase pipeline (session application,
pre-hook, handler) for both mount and event dispatch, short-circuiting once
the session state signals a redirect, and safe translation of untrusted
external event names into internal handler keys.

# Concept

State flows through the pipeline by replacement: every step receives a State
and returns the next one, and once a step sets the redirect marker the
remaining business steps are skipped. The same primitive that powers this
internally, domain.UnlessRedirected, is public so handlers can chain their
own conditional sub-steps.

Unregistered names are rejected using the raw string against the frozen
handler sets before any internal key is produced, so a hostile client
spraying distinct event names cannot grow any process table.

# Usage

	articles, err := espalier.New("ArticlesLive",
		espalier.MountAction("index", listArticles),
		espalier.MountAction("show", showArticle),
		espalier.Event("delete", deleteArticle),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Transport delivers the initial mount...
	env, err := articles.Mount(ctx, "show", domain.Params{"id": "7"}, session)

	// ...and later a stream of events against the persisted state.
	env, err = articles.HandleEvent(ctx, "delete", domain.Params{"id": "7"}, env.State)

The returned Envelope tells the transport whether to continue with the new
state or redirect the client. Hosting concerns such as persistence,
per-session serialization and the HTTP/MCP transports live under pkg/session
and pkg/adapters.
*/
package espalier
