package hemat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testAPIKey = "test-key"

func writeJSON(t *testing.T, w http.ResponseWriter, payload interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("Failed to write response: %v", err)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("Failed to read request body: %v", err)
		return nil
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Errorf("Failed to decode request body: %v", err)
	}
	return body
}

func expectValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected a validation error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeValidation {
		t.Errorf("Expected %s error, got %v", ErrorTypeValidation, err)
	}
}

func TestSearchTweetsValidation(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())

	_, err := client.SearchTweets(context.Background(), "", QueryLatest, PageOptions{})
	expectValidationError(t, err)

	_, err = client.SearchTweets(context.Background(), "golang", "Newest", PageOptions{})
	expectValidationError(t, err)
}

func TestSearchTweetsDefaultsToLatest(t *testing.T) {
	var gotQuery, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotType = r.URL.Query().Get("queryType")
		writeJSON(t, w, tweetPage("tweets", 0, 2, ""))
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	tweets, err := client.SearchTweets(context.Background(), "golang", "", PageOptions{})
	if err != nil {
		t.Fatalf("SearchTweets returned error: %v", err)
	}
	if len(tweets) != 2 {
		t.Errorf("Expected 2 tweets, got %d", len(tweets))
	}
	if gotQuery != "golang" {
		t.Errorf("Expected query golang, got %q", gotQuery)
	}
	if gotType != string(QueryLatest) {
		t.Errorf("Expected queryType %s, got %q", QueryLatest, gotType)
	}
}

func TestSearchTweetsPaginates(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			writeJSON(t, w, tweetPage("tweets", 0, 2, "c1"))
			return
		}
		writeJSON(t, w, tweetPage("tweets", 2, 2, ""))
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	tweets, err := client.SearchTweets(context.Background(), "golang", QueryTop, PageOptions{})
	if err != nil {
		t.Fatalf("SearchTweets returned error: %v", err)
	}
	if len(tweets) != 4 {
		t.Errorf("Expected 4 tweets, got %d", len(tweets))
	}
	if len(cursors) != 2 || cursors[0] != "" || cursors[1] != "c1" {
		t.Errorf("Expected cursor chain [\"\" c1], got %v", cursors)
	}
}

func TestSearchTweetsSeqYieldsValidationError(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())

	var pairs int
	var lastErr error
	for item, err := range client.SearchTweetsSeq(context.Background(), "", QueryLatest, PageOptions{}) {
		pairs++
		lastErr = err
		if item != nil {
			t.Error("Expected nil item with the validation error")
		}
	}
	if pairs != 1 {
		t.Fatalf("Expected a single yielded pair, got %d", pairs)
	}
	expectValidationError(t, lastErr)
}

func TestTweetRepliesParams(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"tweetId":   r.URL.Query().Get("tweetId"),
			"sinceTime": r.URL.Query().Get("sinceTime"),
			"untilTime": r.URL.Query().Get("untilTime"),
		}
		writeJSON(t, w, tweetPage("tweets", 0, 1, ""))
	}))
	defer server.Close()

	window := TimeWindow{
		Since: time.Unix(1700000000, 0),
		Until: time.Unix(1700003600, 0),
	}
	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	replies, err := client.TweetReplies(context.Background(), "12345", window, PageOptions{})
	if err != nil {
		t.Fatalf("TweetReplies returned error: %v", err)
	}
	if len(replies) != 1 {
		t.Errorf("Expected 1 reply, got %d", len(replies))
	}
	if query["tweetId"] != "12345" {
		t.Errorf("Expected tweetId 12345, got %q", query["tweetId"])
	}
	if query["sinceTime"] != "1700000000" {
		t.Errorf("Expected sinceTime 1700000000, got %q", query["sinceTime"])
	}
	if query["untilTime"] != "1700003600" {
		t.Errorf("Expected untilTime 1700003600, got %q", query["untilTime"])
	}
}

func TestTweetRepliesInvalidWindow(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())
	window := TimeWindow{
		Since: time.Unix(1700003600, 0),
		Until: time.Unix(1700000000, 0),
	}
	_, err := client.TweetReplies(context.Background(), "12345", window, PageOptions{})
	expectValidationError(t, err)
}

func TestTweetRepliesStopsOnEmptyRun(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeJSON(t, w, Response{
			"tweets":        []interface{}{},
			"has_next_page": true,
			"next_cursor":   "again",
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	replies, err := client.TweetReplies(context.Background(), "12345", TimeWindow{}, PageOptions{})
	if err != nil {
		t.Fatalf("TweetReplies returned error: %v", err)
	}
	if len(replies) != 0 {
		t.Errorf("Expected no replies, got %d", len(replies))
	}
	if requests != defaultEmptyPageThreshold {
		t.Errorf("Expected %d requests before giving up on empty pages, got %d", defaultEmptyPageThreshold, requests)
	}
}

func TestUserMentionsRequiresUserName(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())
	_, err := client.UserMentions(context.Background(), "", TimeWindow{}, PageOptions{})
	expectValidationError(t, err)
}

func TestUserTweetsSelector(t *testing.T) {
	tests := []struct {
		name      string
		user      UserRef
		wantKey   string
		wantValue string
	}{
		{"by name", UserRef{UserName: "gopher"}, "userName", "gopher"},
		{"by id", UserRef{UserID: "99"}, "userId", "99"},
		{"id wins over name", UserRef{UserName: "gopher", UserID: "99"}, "userId", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query map[string][]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query()
				writeJSON(t, w, tweetPage("tweets", 0, 1, ""))
			}))
			defer server.Close()

			client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
			if _, err := client.UserTweets(context.Background(), tt.user, PageOptions{}); err != nil {
				t.Fatalf("UserTweets returned error: %v", err)
			}
			values := query[tt.wantKey]
			if len(values) != 1 || values[0] != tt.wantValue {
				t.Errorf("Expected %s=%s, got %v", tt.wantKey, tt.wantValue, values)
			}
			if tt.wantKey == "userId" {
				if _, present := query["userName"]; present {
					t.Error("Expected userName to be omitted when userId is set")
				}
			}
		})
	}
}

func TestUserTweetsRequiresSelector(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())
	_, err := client.UserTweets(context.Background(), UserRef{}, PageOptions{})
	expectValidationError(t, err)
}

func TestUserTweetsNormalizesPinnedTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Response{
			"data": map[string]interface{}{
				"pin_tweet": map[string]interface{}{"id": "pinned"},
				"tweets": []interface{}{
					map[string]interface{}{"id": "1"},
					map[string]interface{}{"id": "2"},
				},
			},
			"has_next_page": false,
			"next_cursor":   "",
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	tweets, err := client.UserTweets(context.Background(), UserRef{UserName: "gopher"}, PageOptions{})
	if err != nil {
		t.Fatalf("UserTweets returned error: %v", err)
	}
	if len(tweets) != 3 {
		t.Fatalf("Expected 3 tweets, got %d", len(tweets))
	}
	if tweets[0]["id"] != "pinned" || tweets[0]["is_pinned"] != true {
		t.Errorf("Expected the pinned tweet first, got %v", tweets[0])
	}
}

func TestUserTweetsStopsAtFirstEmptyPage(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			writeJSON(t, w, tweetPage("tweets", 0, 20, "c1"))
			return
		}
		writeJSON(t, w, Response{
			"tweets":        []interface{}{},
			"has_next_page": true,
			"next_cursor":   "c2",
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	tweets, err := client.UserTweets(context.Background(), UserRef{UserName: "gopher"}, PageOptions{})
	if err != nil {
		t.Fatalf("UserTweets returned error: %v", err)
	}
	if len(tweets) != 20 {
		t.Errorf("Expected 20 tweets, got %d", len(tweets))
	}
	if requests != 2 {
		t.Errorf("Expected the walk to end at the first empty page, got %d requests", requests)
	}
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("userName"); got != "gopher" {
			t.Errorf("Expected userName gopher, got %q", got)
		}
		writeJSON(t, w, Response{
			"data": map[string]interface{}{"userName": "gopher", "followers": float64(42)},
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	user, err := client.UserInfo(context.Background(), "gopher")
	if err != nil {
		t.Fatalf("UserInfo returned error: %v", err)
	}
	if user["userName"] != "gopher" {
		t.Errorf("Expected user object, got %v", user)
	}
}

func TestUserInfoMissingUserIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Response{"status": "success"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	user, err := client.UserInfo(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("UserInfo returned error: %v", err)
	}
	if len(user) != 0 {
		t.Errorf("Expected an empty user object, got %v", user)
	}
}

func TestUserInfoByID(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("userIds"); got != "99" {
				t.Errorf("Expected userIds 99, got %q", got)
			}
			writeJSON(t, w, Response{
				"users": []interface{}{
					map[string]interface{}{"id": "99", "userName": "gopher"},
				},
			})
		}))
		defer server.Close()

		client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
		user, err := client.UserInfoByID(context.Background(), "99")
		if err != nil {
			t.Fatalf("UserInfoByID returned error: %v", err)
		}
		if user["userName"] != "gopher" {
			t.Errorf("Expected gopher, got %v", user)
		}
	})

	t.Run("no users", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, Response{"users": []interface{}{}})
		}))
		defer server.Close()

		client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
		_, err := client.UserInfoByID(context.Background(), "99")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeAPI {
			t.Errorf("Expected %s error for a missing user, got %v", ErrorTypeAPI, err)
		}
	})

	t.Run("id mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, Response{
				"users": []interface{}{
					map[string]interface{}{"id": "77", "userName": "other"},
				},
			})
		}))
		defer server.Close()

		client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
		_, err := client.UserInfoByID(context.Background(), "99")
		if err == nil {
			t.Fatal("Expected an error when the returned id does not match")
		}
	})
}

func TestUsersByIDs(t *testing.T) {
	var gotIDs string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("userIds")
		writeJSON(t, w, Response{
			"users": []interface{}{
				map[string]interface{}{"id": "1"},
				map[string]interface{}{"id": "2"},
				map[string]interface{}{"id": "3"},
			},
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	users, err := client.UsersByIDs(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("UsersByIDs returned error: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("Expected 3 users, got %d", len(users))
	}
	if gotIDs != "1,2,3" {
		t.Errorf("Expected userIds 1,2,3, got %q", gotIDs)
	}
}

func TestUsersByIDsRequiresIDs(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())
	_, err := client.UsersByIDs(context.Background(), nil)
	expectValidationError(t, err)
}

func TestUserFollowersAndFollowing(t *testing.T) {
	tests := []struct {
		name string
		key  string
		path string
		call func(*Client) ([]map[string]interface{}, error)
	}{
		{
			name: "followers",
			key:  "followers",
			path: "/twitter/user/followers",
			call: func(c *Client) ([]map[string]interface{}, error) {
				return c.UserFollowers(context.Background(), "gopher", PageOptions{})
			},
		},
		{
			name: "following",
			key:  "followings",
			path: "/twitter/user/followings",
			call: func(c *Client) ([]map[string]interface{}, error) {
				return c.UserFollowing(context.Background(), "gopher", PageOptions{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				writeJSON(t, w, tweetPage(tt.key, 0, 2, ""))
			}))
			defer server.Close()

			client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
			items, err := tt.call(client)
			if err != nil {
				t.Fatalf("Call returned error: %v", err)
			}
			if len(items) != 2 {
				t.Errorf("Expected 2 items, got %d", len(items))
			}
			if gotPath != tt.path {
				t.Errorf("Expected path %s, got %s", tt.path, gotPath)
			}
		})
	}
}

func TestListTweetsParams(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"listId":         r.URL.Query().Get("listId"),
			"includeReplies": r.URL.Query().Get("includeReplies"),
		}
		writeJSON(t, w, tweetPage("tweets", 0, 1, ""))
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	tweets, err := client.ListTweets(context.Background(), "list-1", false, TimeWindow{}, PageOptions{})
	if err != nil {
		t.Fatalf("ListTweets returned error: %v", err)
	}
	if len(tweets) != 1 {
		t.Errorf("Expected 1 tweet, got %d", len(tweets))
	}
	if query["listId"] != "list-1" {
		t.Errorf("Expected listId list-1, got %q", query["listId"])
	}
	if query["includeReplies"] != "false" {
		t.Errorf("Expected includeReplies false, got %q", query["includeReplies"])
	}
}

func TestWebhookRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oapi/tweet_filter/get_rules" {
			t.Errorf("Expected get_rules path, got %s", r.URL.Path)
		}
		writeJSON(t, w, Response{
			"rules": []interface{}{
				map[string]interface{}{"rule_id": "r1", "tag": "go", "value": "golang"},
			},
		})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	rules, err := client.WebhookRules(context.Background())
	if err != nil {
		t.Fatalf("WebhookRules returned error: %v", err)
	}
	if len(rules) != 1 || rules[0]["rule_id"] != "r1" {
		t.Errorf("Expected one rule r1, got %v", rules)
	}
}

func TestAddWebhookRuleValidation(t *testing.T) {
	client := New(testAPIKey, WithoutCache(), WithoutRateLimiter())
	long := strings.Repeat("a", ruleFieldMaxLen+1)

	tests := []struct {
		name     string
		tag      string
		value    string
		interval int
	}{
		{"empty tag", "", "golang", 3600},
		{"long tag", long, "golang", 3600},
		{"empty value", "go", "", 3600},
		{"long value", "go", long, 3600},
		{"interval too small", "go", "golang", minRuleInterval - 1},
		{"interval too large", "go", "golang", maxRuleInterval + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.AddWebhookRule(context.Background(), tt.tag, tt.value, tt.interval)
			expectValidationError(t, err)
		})
	}
}

func TestAddWebhookRule(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		body = decodeBody(t, r)
		writeJSON(t, w, Response{"rule_id": "rule-7", "status": "success"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	rule, err := client.AddWebhookRule(context.Background(), "go", "from:golang", 3600)
	if err != nil {
		t.Fatalf("AddWebhookRule returned error: %v", err)
	}
	if body["tag"] != "go" || body["value"] != "from:golang" {
		t.Errorf("Expected rule fields in the body, got %v", body)
	}
	if body["interval_seconds"] != float64(3600) {
		t.Errorf("Expected interval_seconds 3600, got %v", body["interval_seconds"])
	}
	if rule["rule_id"] != "rule-7" {
		t.Errorf("Expected rule_id rule-7, got %v", rule["rule_id"])
	}
	if rule["is_effect"] != 0 {
		t.Errorf("Expected new rules to start inactive, got %v", rule["is_effect"])
	}
}

func TestAddWebhookRuleNumericID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Response{"rule_id": float64(12345)})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	rule, err := client.AddWebhookRule(context.Background(), "go", "golang", 3600)
	if err != nil {
		t.Fatalf("AddWebhookRule returned error: %v", err)
	}
	if rule["rule_id"] != "12345" {
		t.Errorf("Expected rule_id 12345, got %v", rule["rule_id"])
	}
}

func TestAddWebhookRuleMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Response{"status": "success"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	_, err := client.AddWebhookRule(context.Background(), "go", "golang", 3600)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeAPI {
		t.Errorf("Expected %s error for a missing rule_id, got %v", ErrorTypeAPI, err)
	}
}

func TestUpdateWebhookRule(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeJSON(t, w, Response{"status": "success"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	if err := client.UpdateWebhookRule(context.Background(), "r1", "go", "golang", 7200, true); err != nil {
		t.Fatalf("UpdateWebhookRule returned error: %v", err)
	}
	if body["rule_id"] != "r1" {
		t.Errorf("Expected rule_id r1 in the body, got %v", body["rule_id"])
	}
	if body["is_effect"] != float64(1) {
		t.Errorf("Expected is_effect 1 for an active rule, got %v", body["is_effect"])
	}
}

func TestUpdateWebhookRuleUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Response{"status": "pending"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	err := client.UpdateWebhookRule(context.Background(), "r1", "go", "golang", 7200, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTypeAPI {
		t.Errorf("Expected %s error for a pending status, got %v", ErrorTypeAPI, err)
	}
}

func TestDeleteWebhookRule(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE method, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Expected JSON content type, got %q", got)
		}
		body = decodeBody(t, r)
		writeJSON(t, w, Response{"status": "success"})
	}))
	defer server.Close()

	client := New(testAPIKey, WithBaseURL(server.URL), WithoutCache(), WithoutRateLimiter())
	if err := client.DeleteWebhookRule(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteWebhookRule returned error: %v", err)
	}
	if body["rule_id"] != "r1" {
		t.Errorf("Expected rule_id r1 in the body, got %v", body["rule_id"])
	}
}
