package hemat

import "strings"

// CostEstimator predicts the resource type and item count a call will be
// billed for before it is sent. The prediction drives the budget check and
// the rate limiter's cost scaling; the actual charge is recorded afterwards
// from the same figures.
type CostEstimator func(endpoint string, params Params) (resourceType string, count int)

// DefaultCostEstimator maps the known endpoints to their billed resource.
// Paged tweet listings bill a full page of 20, follower listings a page of
// 200, and batch user lookups one user per requested ID. Unknown endpoints
// are charged as a flat request.
func DefaultCostEstimator(endpoint string, params Params) (string, int) {
	switch {
	case strings.HasSuffix(endpoint, "tweet/advanced_search"):
		return ResourceTweet, 20
	case strings.HasSuffix(endpoint, "user/batch_info_by_ids"):
		ids, _ := params["userIds"].(string)
		if ids == "" {
			return ResourceUser, 1
		}
		return ResourceUser, strings.Count(ids, ",") + 1
	case strings.HasSuffix(endpoint, "user/info"):
		return ResourceUser, 1
	case strings.HasSuffix(endpoint, "user/followers"),
		strings.HasSuffix(endpoint, "user/followings"):
		return ResourceFollower, 200
	case strings.HasSuffix(endpoint, "user/last_tweets"),
		strings.HasSuffix(endpoint, "tweet/replies"),
		strings.HasSuffix(endpoint, "tweet/quotes"),
		strings.HasSuffix(endpoint, "list/tweets"):
		return ResourceTweet, 20
	default:
		return ResourceRequest, 1
	}
}
