// Package engine wires store, queue, rate limiter, mail sender, and
// worker pool into a running scheduler, and implements campaign
// ingress: validating a create-campaign request, persisting the
// campaign and its per-recipient dispatches, and enqueuing the
// corresponding delivery tasks.
//
// The engine package exists to break an import cycle: the root outbox
// package defines shared config/errors imported by worker and by the
// store backends, and therefore cannot import those packages back.
// Engine sits above all subsystem packages and below the application
// (api, cmd) layer.
//
// # Building an Engine
//
//	eng, err := engine.Build(ctx, store, redisClient, outbox.DefaultConfig(),
//	    engine.WithSender(mail.NewSMTPSender(store)),
//	    engine.WithLogger(logger),
//	)
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(ctx)
//
// # Ingress
//
//	result, err := eng.CreateCampaign(ctx, engine.CreateCampaignRequest{
//	    UserID:    userID,
//	    Subject:   "hello",
//	    Body:      "world",
//	    Recipients: []string{"a@x.io", "b@x.io"},
//	    StartTime: time.Now().Add(time.Minute),
//	})
package engine
