// Package query provides a cache-and-subscription engine for asynchronous data.
//
// A Client memoizes the results of asynchronous reads keyed by a logical Key.
// Query controllers decide whether a cached Entry is fresh enough to serve or
// whether to invoke the fetcher, and publish their state to subscribers.
// Mutation controllers run one-shot asynchronous writes and track their
// lifecycle without caching anything.
//
// # Queries
//
//	client := query.NewClient(query.ClientConfig{StaleTime: time.Minute})
//
//	books := query.NewQuery(ctx, client, query.Key{"books"}, fetchBooks)
//	defer books.Close()
//
//	unsubscribe := books.Subscribe(func(s query.State[[]Book]) {
//	    render(s.Data, s.Err, s.IsLoading)
//	})
//	defer unsubscribe()
//
// # Mutations
//
//	addToCart := query.NewMutation(api.AddToCart, query.MutationConfig[AddRequest, CartItem]{
//	    Name: "cart.add",
//	    OnSuccess: func(CartItem, AddRequest) {
//	        _ = cart.Refetch(ctx)
//	    },
//	})
//	addToCart.Mutate(ctx, AddRequest{BookID: 7})
//
// The core never retries, never times out, and never evicts. Callers wrap
// fetchers with the resilience package when they need those policies.
package query
