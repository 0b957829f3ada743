package hemat

import (
	"testing"
	"time"
)

func TestDefaultCostEstimator(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		params       Params
		expectedType string
		expectedN    int
	}{
		{
			name:         "advanced search bills a full page",
			endpoint:     "twitter/tweet/advanced_search",
			params:       Params{"query": "golang"},
			expectedType: ResourceTweet,
			expectedN:    20,
		},
		{
			name:         "user info bills one user",
			endpoint:     "twitter/user/info",
			params:       Params{"userName": "gopher"},
			expectedType: ResourceUser,
			expectedN:    1,
		},
		{
			name:         "batch lookup bills one user per id",
			endpoint:     "twitter/user/batch_info_by_ids",
			params:       Params{"userIds": "1,2,3"},
			expectedType: ResourceUser,
			expectedN:    3,
		},
		{
			name:         "batch lookup without ids bills one user",
			endpoint:     "twitter/user/batch_info_by_ids",
			params:       Params{},
			expectedType: ResourceUser,
			expectedN:    1,
		},
		{
			name:         "followers bill a follower page",
			endpoint:     "twitter/user/followers",
			params:       Params{"userName": "gopher"},
			expectedType: ResourceFollower,
			expectedN:    200,
		},
		{
			name:         "followings bill a follower page",
			endpoint:     "twitter/user/followings",
			params:       Params{"userName": "gopher"},
			expectedType: ResourceFollower,
			expectedN:    200,
		},
		{
			name:         "user timeline bills a tweet page",
			endpoint:     "twitter/user/last_tweets",
			params:       Params{"userName": "gopher"},
			expectedType: ResourceTweet,
			expectedN:    20,
		},
		{
			name:         "replies bill a tweet page",
			endpoint:     "twitter/tweet/replies",
			params:       Params{"tweetId": "42"},
			expectedType: ResourceTweet,
			expectedN:    20,
		},
		{
			name:         "quotes bill a tweet page",
			endpoint:     "twitter/tweet/quotes",
			params:       Params{"tweetId": "42"},
			expectedType: ResourceTweet,
			expectedN:    20,
		},
		{
			name:         "list timeline bills a tweet page",
			endpoint:     "twitter/list/tweets",
			params:       Params{"listId": "7"},
			expectedType: ResourceTweet,
			expectedN:    20,
		},
		{
			name:         "unknown endpoint bills a flat request",
			endpoint:     "twitter/trends/locations",
			params:       Params{},
			expectedType: ResourceRequest,
			expectedN:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resourceType, count := DefaultCostEstimator(tt.endpoint, tt.params)
			if resourceType != tt.expectedType {
				t.Errorf("Expected resource type %q, got %q", tt.expectedType, resourceType)
			}
			if count != tt.expectedN {
				t.Errorf("Expected count %d, got %d", tt.expectedN, count)
			}
		})
	}
}

func TestEstimatorFeedsBudget(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	tracker := NewBudgetTracker(BudgetConfig{
		DailyBudgetUSD: 0.5,
		Clock:          clock,
		Logger:         NoopLogger{},
	})

	resourceType, count := DefaultCostEstimator("twitter/user/batch_info_by_ids", Params{"userIds": "1,2,3,4"})
	cost := tracker.CalculateCost(resourceType, count)

	// 4 users price out below the flat request rate, so the floor applies.
	if cost != 15 {
		t.Errorf("Expected estimated cost 15 credits, got %v", cost)
	}
	if !tracker.CheckBudget(cost) {
		t.Error("Expected a fresh day to afford 15 credits")
	}
}
