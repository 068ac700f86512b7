// Package bilibili talks to the bilibili web API and article pages.
//
// Client is the HTTP layer: cookies, request pacing, transport retries and
// status classification. API sits on top of it and exposes the listing
// endpoints as lazy sequences:
//
//	api := bilibili.NewAPI(bilibili.NewClientFromConfig(cfg, log))
//	for ref, err := range api.UserArticles(ctx, "12345") {
//		if err != nil {
//			return err
//		}
//		state, err := api.Article(ctx, ref.OpusID)
//		...
//	}
//
// A page is only requested once the caller has consumed every item of the
// previous one. Envelope failures surface as abort errors from pkg/errors and
// are never retried.
package bilibili
