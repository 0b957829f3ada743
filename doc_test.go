package hemat_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ambiyansyah-risyal/hemat"
)

func ExampleNew() {
	client := hemat.New(os.Getenv("TWITTERAPI_KEY"),
		hemat.WithDailyBudget(0.50),
		hemat.WithRateLimit(30, 2*time.Second),
		hemat.WithDeduplication(),
	)

	user, err := client.UserInfo(context.Background(), "nasa")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(user["name"])
}

func ExampleClient_SearchTweets() {
	client := hemat.New(os.Getenv("TWITTERAPI_KEY"))

	tweets, err := client.SearchTweets(context.Background(), "golang", hemat.QueryLatest,
		hemat.PageOptions{MaxResults: 50})
	if err != nil {
		log.Fatal(err)
	}
	for _, tweet := range tweets {
		fmt.Println(tweet["text"])
	}
}

func ExampleClient_SearchTweetsSeq() {
	client := hemat.New(os.Getenv("TWITTERAPI_KEY"))

	// Pages are fetched lazily; breaking out early stops further spending.
	for tweet, err := range client.SearchTweetsSeq(context.Background(), "golang", hemat.QueryLatest,
		hemat.PageOptions{MaxPages: 5}) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(tweet["text"])
	}
}

func ExampleClient_BudgetStatus() {
	client := hemat.New(os.Getenv("TWITTERAPI_KEY"), hemat.WithDailyBudget(1.00))

	status := client.BudgetStatus()
	fmt.Printf("spent $%.4f of $%.2f (%.1f%%)\n",
		status.SpentTodayUSD, status.DailyBudgetUSD, status.PercentUsed)
}
