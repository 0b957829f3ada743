package hemat

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

const (
	endpointSearch        = "twitter/tweet/advanced_search"
	endpointTweetReplies  = "twitter/tweet/replies"
	endpointUserInfo      = "twitter/user/info"
	endpointUserBatch     = "twitter/user/batch_info_by_ids"
	endpointUserTweets    = "twitter/user/last_tweets"
	endpointUserMentions  = "twitter/user/mentions"
	endpointUserFollowers = "twitter/user/followers"
	endpointUserFollowing = "twitter/user/followings"
	endpointListTweets    = "twitter/list/tweets"

	endpointFilterRules      = "oapi/tweet_filter/get_rules"
	endpointFilterAddRule    = "oapi/tweet_filter/add_rule"
	endpointFilterUpdateRule = "oapi/tweet_filter/update_rule"
	endpointFilterDeleteRule = "oapi/tweet_filter/delete_rule"
)

const (
	// ruleFieldMaxLen caps the tag and value fields of a filter rule.
	ruleFieldMaxLen = 255
	// minRuleInterval and maxRuleInterval bound a filter rule's check
	// interval in seconds.
	minRuleInterval = 100
	maxRuleInterval = 86400
)

// QueryType selects the search ranking.
type QueryType string

const (
	// QueryLatest orders search results newest first.
	QueryLatest QueryType = "Latest"
	// QueryTop orders search results by engagement.
	QueryTop QueryType = "Top"
)

func (q QueryType) validate() error {
	switch q {
	case QueryLatest, QueryTop:
		return nil
	}
	return newValidationError("parameter queryType must be one of: %s, %s", QueryLatest, QueryTop)
}

// UserRef selects a user by screen name or by ID. When both are set the ID
// wins, matching the upstream's precedence.
type UserRef struct {
	UserName string
	UserID   string
}

func (u UserRef) validate() error {
	if u.UserName == "" && u.UserID == "" {
		return newValidationError("either UserName or UserID must be provided")
	}
	return nil
}

func (u UserRef) apply(p Params) {
	if u.UserID != "" {
		p["userId"] = u.UserID
		return
	}
	p["userName"] = u.UserName
}

// PageOptions adjusts a paginated endpoint call. Zero caps take the client's
// configured defaults; larger asks are clamped down to them.
type PageOptions struct {
	// MaxPages caps how many pages the call may fetch.
	MaxPages int
	// MaxResults caps how many items the call returns.
	MaxResults int
	// Cursor resumes from a previously observed pagination cursor.
	Cursor string
}

// config binds an endpoint's resource key and empty page policy to the
// caller's paging choices.
func (o PageOptions) config(resourceKey string, stopOnEmpty bool, maxEmptyPages int) PaginationConfig {
	return PaginationConfig{
		ResourceKey:   resourceKey,
		MaxPages:      o.MaxPages,
		MaxItems:      o.MaxResults,
		InitialCursor: o.Cursor,
		StopOnEmpty:   stopOnEmpty,
		MaxEmptyPages: maxEmptyPages,
	}
}

// requireString rejects an empty required parameter.
func requireString(name, value string) error {
	if value == "" {
		return newValidationError("parameter %s must not be empty", name)
	}
	return nil
}

func requireStringMax(name, value string, max int) error {
	if err := requireString(name, value); err != nil {
		return err
	}
	if len(value) > max {
		return newValidationError("parameter %s must be at most %d characters", name, max)
	}
	return nil
}

// errSeq is a sequence that yields a single error, used when validation
// fails before any page can be fetched.
func errSeq(err error) iter.Seq2[map[string]interface{}, error] {
	return func(yield func(map[string]interface{}, error) bool) {
		yield(nil, err)
	}
}

func searchParams(query string, queryType QueryType) (Params, error) {
	if err := requireString("query", query); err != nil {
		return nil, err
	}
	if queryType == "" {
		queryType = QueryLatest
	}
	if err := queryType.validate(); err != nil {
		return nil, err
	}
	return Params{"query": query, "queryType": string(queryType)}, nil
}

// SearchTweets runs an advanced search query and collects matching tweets.
// An empty queryType defaults to QueryLatest. Search pages are walked to the
// caps even through empty pages, since sparse queries legitimately return
// gaps mid sequence.
func (c *Client) SearchTweets(ctx context.Context, query string, queryType QueryType, opts PageOptions) ([]map[string]interface{}, error) {
	params, err := searchParams(query, queryType)
	if err != nil {
		return nil, err
	}
	return c.Paginate(ctx, endpointSearch, params, opts.config("tweets", false, 0))
}

// SearchTweetsSeq is the lazy form of SearchTweets.
func (c *Client) SearchTweetsSeq(ctx context.Context, query string, queryType QueryType, opts PageOptions) iter.Seq2[map[string]interface{}, error] {
	params, err := searchParams(query, queryType)
	if err != nil {
		return errSeq(err)
	}
	return c.PaginateSeq(ctx, endpointSearch, params, opts.config("tweets", false, 0))
}

func repliesParams(tweetID string, window TimeWindow) (Params, error) {
	if err := requireString("tweetId", tweetID); err != nil {
		return nil, err
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	p := Params{"tweetId": tweetID}
	window.apply(p)
	return p, nil
}

// TweetReplies collects replies to a tweet. Replies arrive under the tweets
// key despite the documented name, and the walk stops on the first run of
// empty pages because the endpoint reports more pages long after the replies
// run out.
func (c *Client) TweetReplies(ctx context.Context, tweetID string, window TimeWindow, opts PageOptions) ([]map[string]interface{}, error) {
	params, err := repliesParams(tweetID, window)
	if err != nil {
		return nil, err
	}
	return c.Paginate(ctx, endpointTweetReplies, params, opts.config("tweets", true, 0))
}

// TweetRepliesSeq is the lazy form of TweetReplies.
func (c *Client) TweetRepliesSeq(ctx context.Context, tweetID string, window TimeWindow, opts PageOptions) iter.Seq2[map[string]interface{}, error] {
	params, err := repliesParams(tweetID, window)
	if err != nil {
		return errSeq(err)
	}
	return c.PaginateSeq(ctx, endpointTweetReplies, params, opts.config("tweets", true, 0))
}

// UserMentions collects tweets mentioning userName.
func (c *Client) UserMentions(ctx context.Context, userName string, window TimeWindow, opts PageOptions) ([]map[string]interface{}, error) {
	if err := requireString("userName", userName); err != nil {
		return nil, err
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	params := Params{"userName": userName}
	window.apply(params)
	return c.Paginate(ctx, endpointUserMentions, params, opts.config("tweets", true, 0))
}

func userTweetsParams(user UserRef) (Params, error) {
	if err := user.validate(); err != nil {
		return nil, err
	}
	params := Params{}
	user.apply(params)
	return params, nil
}

// UserTweets collects a user's timeline, pinned tweet first when one exists.
// The walk ends at the first empty page; the timeline endpoint keeps
// advertising next pages past the end.
func (c *Client) UserTweets(ctx context.Context, user UserRef, opts PageOptions) ([]map[string]interface{}, error) {
	params, err := userTweetsParams(user)
	if err != nil {
		return nil, err
	}
	return c.Paginate(ctx, endpointUserTweets, params, opts.config("tweets", true, 1))
}

// UserTweetsSeq is the lazy form of UserTweets.
func (c *Client) UserTweetsSeq(ctx context.Context, user UserRef, opts PageOptions) iter.Seq2[map[string]interface{}, error] {
	params, err := userTweetsParams(user)
	if err != nil {
		return errSeq(err)
	}
	return c.PaginateSeq(ctx, endpointUserTweets, params, opts.config("tweets", true, 1))
}

// UserInfo returns the profile object for a screen name. A payload without a
// user object yields an empty map.
func (c *Client) UserInfo(ctx context.Context, userName string) (map[string]interface{}, error) {
	if err := requireString("userName", userName); err != nil {
		return nil, err
	}
	payload, err := c.Get(ctx, endpointUserInfo, Params{"userName": userName})
	if err != nil {
		return nil, err
	}
	user, _ := payload["user"].(map[string]interface{})
	if user == nil {
		user = map[string]interface{}{}
	}
	return user, nil
}

// UserInfoByID returns the profile object for a user ID through the batch
// lookup endpoint. A payload without a matching user is an API error rather
// than an empty result.
func (c *Client) UserInfoByID(ctx context.Context, userID string) (map[string]interface{}, error) {
	if err := requireString("userId", userID); err != nil {
		return nil, err
	}
	payload, err := c.Get(ctx, endpointUserBatch, Params{"userIds": userID})
	if err != nil {
		return nil, err
	}
	users, _ := payload.collectionAt("users")
	if len(users) == 0 {
		return nil, &APIError{
			Type:     ErrorTypeAPI,
			Message:  fmt.Sprintf("no user data returned for userId %s", userID),
			Endpoint: endpointUserBatch,
		}
	}
	user := users[0]
	if id, _ := user["id"].(string); id != userID {
		return nil, &APIError{
			Type:     ErrorTypeAPI,
			Message:  fmt.Sprintf("returned user id %v does not match requested id %s", user["id"], userID),
			Endpoint: endpointUserBatch,
		}
	}
	return user, nil
}

// UsersByIDs looks up multiple users in one billed call. IDs are joined into
// a single comma separated parameter.
func (c *Client) UsersByIDs(ctx context.Context, userIDs []string) ([]map[string]interface{}, error) {
	if len(userIDs) == 0 {
		return nil, newValidationError("userIds must not be empty")
	}
	payload, err := c.Get(ctx, endpointUserBatch, Params{"userIds": strings.Join(userIDs, ",")})
	if err != nil {
		return nil, err
	}
	users, _ := payload.collectionAt("users")
	return users, nil
}

// UserFollowers collects the followers of a screen name.
func (c *Client) UserFollowers(ctx context.Context, userName string, opts PageOptions) ([]map[string]interface{}, error) {
	if err := requireString("userName", userName); err != nil {
		return nil, err
	}
	params := Params{"userName": userName}
	return c.Paginate(ctx, endpointUserFollowers, params, opts.config("followers", true, 0))
}

// UserFollowing collects the accounts a screen name follows.
func (c *Client) UserFollowing(ctx context.Context, userName string, opts PageOptions) ([]map[string]interface{}, error) {
	if err := requireString("userName", userName); err != nil {
		return nil, err
	}
	params := Params{"userName": userName}
	return c.Paginate(ctx, endpointUserFollowing, params, opts.config("followings", true, 0))
}

// ListTweets collects tweets from a Twitter list.
func (c *Client) ListTweets(ctx context.Context, listID string, includeReplies bool, window TimeWindow, opts PageOptions) ([]map[string]interface{}, error) {
	if err := requireString("listId", listID); err != nil {
		return nil, err
	}
	if err := window.validate(); err != nil {
		return nil, err
	}
	params := Params{"listId": listID, "includeReplies": includeReplies}
	window.apply(params)
	return c.Paginate(ctx, endpointListTweets, params, opts.config("tweets", true, 0))
}

// WebhookRules lists the configured tweet filter rules.
func (c *Client) WebhookRules(ctx context.Context) ([]map[string]interface{}, error) {
	payload, err := c.Get(ctx, endpointFilterRules, nil)
	if err != nil {
		return nil, err
	}
	rules, ok := payload.collectionAt("rules")
	if !ok {
		return nil, &APIError{
			Type:     ErrorTypeAPI,
			Message:  fmt.Sprintf("expected a list under \"rules\", got %T", payload["rules"]),
			Endpoint: endpointFilterRules,
		}
	}
	return rules, nil
}

// AddWebhookRule creates a tweet filter rule and returns the stored rule,
// including the upstream assigned rule_id. New rules start inactive.
func (c *Client) AddWebhookRule(ctx context.Context, tag, value string, intervalSeconds int) (map[string]interface{}, error) {
	if err := requireStringMax("tag", tag, ruleFieldMaxLen); err != nil {
		return nil, err
	}
	if err := requireStringMax("value", value, ruleFieldMaxLen); err != nil {
		return nil, err
	}
	if intervalSeconds < minRuleInterval || intervalSeconds > maxRuleInterval {
		return nil, newValidationError("parameter interval_seconds must be between %d and %d", minRuleInterval, maxRuleInterval)
	}

	payload, err := c.Post(ctx, endpointFilterAddRule, Params{
		"tag":              tag,
		"value":            value,
		"interval_seconds": intervalSeconds,
	})
	if err != nil {
		return nil, err
	}

	ruleID := ruleIDField(payload)
	if ruleID == "" {
		return nil, &APIError{
			Type:     ErrorTypeAPI,
			Message:  "missing rule_id in response",
			Endpoint: endpointFilterAddRule,
		}
	}
	return map[string]interface{}{
		"rule_id":          ruleID,
		"tag":              tag,
		"value":            value,
		"interval_seconds": intervalSeconds,
		"is_effect":        0,
	}, nil
}

// UpdateWebhookRule rewrites an existing tweet filter rule. active maps to
// the upstream's is_effect flag.
func (c *Client) UpdateWebhookRule(ctx context.Context, ruleID, tag, value string, intervalSeconds int, active bool) error {
	if err := requireString("rule_id", ruleID); err != nil {
		return err
	}
	if err := requireStringMax("tag", tag, ruleFieldMaxLen); err != nil {
		return err
	}
	if err := requireStringMax("value", value, ruleFieldMaxLen); err != nil {
		return err
	}
	if intervalSeconds < minRuleInterval || intervalSeconds > maxRuleInterval {
		return newValidationError("parameter interval_seconds must be between %d and %d", minRuleInterval, maxRuleInterval)
	}

	isEffect := 0
	if active {
		isEffect = 1
	}
	payload, err := c.Post(ctx, endpointFilterUpdateRule, Params{
		"rule_id":          ruleID,
		"tag":              tag,
		"value":            value,
		"interval_seconds": intervalSeconds,
		"is_effect":        isEffect,
	})
	if err != nil {
		return err
	}
	return requireSuccess(payload, endpointFilterUpdateRule)
}

// DeleteWebhookRule removes a tweet filter rule.
func (c *Client) DeleteWebhookRule(ctx context.Context, ruleID string) error {
	if err := requireString("rule_id", ruleID); err != nil {
		return err
	}
	payload, err := c.Delete(ctx, endpointFilterDeleteRule, Params{"rule_id": ruleID})
	if err != nil {
		return err
	}
	return requireSuccess(payload, endpointFilterDeleteRule)
}

// requireSuccess turns a non-success status on an otherwise healthy response
// into an API error. Error statuses are already rejected by the pipeline, so
// this catches in-between states only.
func requireSuccess(payload Response, endpoint string) error {
	if payload.Status() == "success" {
		return nil
	}
	return &APIError{
		Type:     ErrorTypeAPI,
		Message:  fmt.Sprintf("unexpected status %q", payload.Status()),
		Endpoint: endpoint,
	}
}

// ruleIDField reads the rule_id the upstream assigned, tolerating a numeric
// encoding.
func ruleIDField(payload Response) string {
	switch v := payload["rule_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
