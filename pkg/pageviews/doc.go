// Package pageviews provides a convenience client for the Wikimedia
// Foundation Analytics pageview REST API: per-article view counts,
// per-project aggregate counts, and top-article rankings.
//
// Batch queries fan out one request per entity through a bounded worker
// pool, so fetching counts for fifty articles costs one round-trip time,
// not fifty. Per-entity failures are isolated: one failing article never
// aborts the rest of the batch.
//
// Example usage:
//
//	api, _ := client.New(client.DefaultConfig(redisClient, "MyApp/1.0 (me@example.com)"))
//	pv, _ := pageviews.New(api, pageviews.DefaultConfig())
//
//	results, err := pv.ArticleViews(ctx, "en.wikipedia",
//		[]string{"Selfie", "Cat", "Dog"}, pageviews.Options{})
//
// Each entry in the result map distinguishes three outcomes: a real count
// (possibly zero), "no data for this entity" (NotFound), and "the request
// for this entity failed" (Err).
package pageviews
