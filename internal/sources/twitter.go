package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DeafMist/media-aggregator/internal/models"
)

const (
	twitterBaseURL    = "https://api.twitter.com"
	minTweetResults   = 5
	maxTweetResults   = 100
	tweetFieldsParam  = "created_at,public_metrics,entities,referenced_tweets,context_annotations"
	tweetStatusFormat = "https://twitter.com/%s/status/%s"
)

// TweetQuery selects a user timeline page. Times are ISO 8601.
type TweetQuery struct {
	Username   string
	StartTime  string
	EndTime    string
	MaxResults int
}

// TwitterClient talks to the X API v2 with app-only bearer auth.
type TwitterClient struct {
	base
	token string
}

func NewTwitterClient(bearerToken string, opts ...Option) (*TwitterClient, error) {
	if err := requireCredential("Twitter bearer token", bearerToken); err != nil {
		return nil, err
	}
	return &TwitterClient{base: newBase(SourceTweets, twitterBaseURL, opts), token: bearerToken}, nil
}

type twitterUserResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type twitterTimelineResponse struct {
	Data []twitterTweet `json:"data"`
}

type twitterTweet struct {
	ID            models.FlexibleID `json:"id"`
	Text          string            `json:"text"`
	CreatedAt     string            `json:"created_at"`
	PublicMetrics *struct {
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		LikeCount    int `json:"like_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	Entities *struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
	ContextAnnotations []struct {
		Domain *struct {
			Name string `json:"name"`
		} `json:"domain"`
		Entity *struct {
			Name string `json:"name"`
		} `json:"entity"`
	} `json:"context_annotations"`
}

// Fetch resolves the handle to a user id and returns one page of its tweets.
func (c *TwitterClient) Fetch(ctx context.Context, q TweetQuery) ([]models.SocialPost, error) {
	username := strings.TrimPrefix(strings.TrimSpace(q.Username), "@")
	if username == "" {
		return nil, fmt.Errorf("%s: username is required", c.name)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	var user twitterUserResponse
	if err := c.getJSON(ctx, "/2/users/by/username/"+url.PathEscape(username), nil, header, &user); err != nil {
		return nil, err
	}
	if user.Data == nil || user.Data.ID == "" {
		return nil, fmt.Errorf("%s: %q: %w", c.name, username, ErrUserNotFound)
	}
	userID := user.Data.ID

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(clampResults(q.MaxResults)))
	params.Set("tweet.fields", tweetFieldsParam)
	setIfNotEmpty(params, "start_time", q.StartTime)
	setIfNotEmpty(params, "end_time", q.EndTime)

	var timeline twitterTimelineResponse
	if err := c.getJSON(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", params, header, &timeline); err != nil {
		return nil, err
	}

	posts := make([]models.SocialPost, 0, len(timeline.Data))
	for _, tweet := range timeline.Data {
		post := normalizeTweet(tweet, username, userID)
		if err := c.persist(post, SourceTweets); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func normalizeTweet(t twitterTweet, username, userID string) models.SocialPost {
	post := models.SocialPost{
		ID:        t.ID,
		Text:      t.Text,
		Username:  username,
		UserID:    models.FlexibleID(userID),
		URL:       fmt.Sprintf(tweetStatusFormat, username, t.ID),
		CreatedAt: t.CreatedAt,
	}

	if m := t.PublicMetrics; m != nil {
		post.RetweetCount = m.RetweetCount
		post.ReplyCount = m.ReplyCount
		post.LikeCount = m.LikeCount
		post.QuoteCount = m.QuoteCount
	}

	if e := t.Entities; e != nil {
		var tags, mentions, links []string
		for _, h := range e.Hashtags {
			tags = append(tags, h.Tag)
		}
		for _, m := range e.Mentions {
			mentions = append(mentions, m.Username)
		}
		for _, u := range e.URLs {
			links = append(links, u.ExpandedURL)
		}
		post.Hashtags = uniqueStrings(tags)
		post.Mentions = uniqueStrings(mentions)
		post.URLs = uniqueStrings(links)
	}

	var topics, entities []string
	for _, a := range t.ContextAnnotations {
		if a.Domain != nil {
			topics = append(topics, a.Domain.Name)
		}
		if a.Entity != nil {
			entities = append(entities, a.Entity.Name)
		}
	}
	post.Topics = uniqueStrings(topics)
	post.Entities = uniqueStrings(entities)

	return post
}

func clampResults(n int) int {
	switch {
	case n <= 0:
		return maxTweetResults
	case n < minTweetResults:
		return minTweetResults
	case n > maxTweetResults:
		return maxTweetResults
	default:
		return n
	}
}
