package query_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/asyncquery/query"
)

func ExampleNewQuery() {
	ctx := context.Background()
	client := query.NewClient(query.ClientConfig{StaleTime: time.Minute})

	calls := 0
	fetchBooks := func(context.Context) ([]string, error) {
		calls++
		return []string{"Dune", "Emma"}, nil
	}

	// Disabled queries never fetch on their own; Refetch blocks until
	// the fetcher returns.
	books := query.NewQuery(ctx, client, query.Key{"books"}, fetchBooks, query.WithEnabled(false))
	defer books.Close()
	_ = books.Refetch(ctx)

	// A second query for the same key is served from the cache.
	again := query.NewQuery(ctx, client, query.Key{"books"}, fetchBooks)
	defer again.Close()

	fmt.Println("Data:", again.State().Data)
	fmt.Println("Status:", again.State().Status)
	fmt.Println("Fetcher calls:", calls)
	// Output:
	// Data: [Dune Emma]
	// Status: success
	// Fetcher calls: 1
}

func ExampleQuery_SetEnabled() {
	ctx := context.Background()
	client := query.NewClient(query.ClientConfig{})

	user := query.NewQuery(ctx, client, query.Key{"user", 1},
		func(context.Context) (string, error) { return "ada", nil },
		query.WithEnabled(false),
	)
	defer user.Close()

	fmt.Println("Status while disabled:", user.State().Status)
	// Output:
	// Status while disabled: idle
}

func ExampleClient_SetData() {
	ctx := context.Background()
	client := query.NewClient(query.ClientConfig{StaleTime: time.Hour})
	client.SetData(query.Key{"settings"}, "dark")

	settings := query.NewQuery(ctx, client, query.Key{"settings"},
		func(context.Context) (string, error) { return "light", nil },
	)
	defer settings.Close()

	fmt.Println("Theme:", settings.State().Data)
	// Output:
	// Theme: dark
}

func ExampleNewDefaultKeyer() {
	keyer := query.NewDefaultKeyer()

	// Map ordering doesn't affect the encoding
	k1 := keyer.Encode(query.Key{"books", map[string]any{"page": 2, "sort": "title"}})
	k2 := keyer.Encode(query.Key{"books", map[string]any{"sort": "title", "page": 2}})

	fmt.Println(k1)
	fmt.Println("Keys match:", k1 == k2)
	// Output:
	// ["books",{"page":2,"sort":"title"}]
	// Keys match: true
}

func ExampleNewMutation() {
	ctx := context.Background()

	addToCart := query.NewMutation(func(_ context.Context, bookID int) (int, error) {
		return bookID * 10, nil
	}, query.MutationConfig[int, int]{
		Name: "cart.add",
		OnSuccess: func(lineID, bookID int) {
			fmt.Println("added book", bookID, "as line", lineID)
		},
	})

	lineID, err := addToCart.MutateAsync(ctx, 7)
	fmt.Println("Result:", lineID, err)
	fmt.Println("Status:", addToCart.State().Status)
	// Output:
	// added book 7 as line 70
	// Result: 70 <nil>
	// Status: success
}

func ExampleMutation_MutateAsync_error() {
	ctx := context.Background()
	errSoldOut := errors.New("sold out")

	checkout := query.NewMutation(func(context.Context, string) (string, error) {
		return "", errSoldOut
	})

	_, err := checkout.MutateAsync(ctx, "order-1")
	fmt.Println("Sold out:", errors.Is(err, errSoldOut))
	fmt.Println("Status:", checkout.State().Status)
	// Output:
	// Sold out: true
	// Status: error
}
