package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// ActionScope names a class of conversational action.
type ActionScope string

const (
	ActionScopeConfirm     ActionScope = "confirm"
	ActionScopeReportIssue ActionScope = "report_issue"
)

// ActionClaim describes what a consumed action token authorizes.
type ActionClaim struct {
	Scope    ActionScope `json:"scope"`
	OrderID  string      `json:"order_id"`
	Audience string      `json:"audience"`
}

// ActionTokens guards short-lived conversational actions (buttons, forms).
// Tokens expire after the configured validity window; consuming a missing
// token is the benign ExpiredAction outcome, never a loud failure.
type ActionTokens interface {
	Issue(ctx context.Context, claim ActionClaim) (string, error)
	Consume(ctx context.Context, token string) (*ActionClaim, error)
	Revoke(ctx context.Context, scope ActionScope, orderID string) error
}

// RedisActionTokens stores action tokens in Redis with a TTL.
type RedisActionTokens struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisActionTokens creates the store.
func NewRedisActionTokens(client *redis.Client, ttl time.Duration) *RedisActionTokens {
	return &RedisActionTokens{client: client, ttl: ttl}
}

func actionKey(token string) string {
	return "action:" + token
}

func actionIndexKey(scope ActionScope, orderID string) string {
	return "action_index:" + string(scope) + ":" + orderID
}

// Issue stores a one-shot token for the claim. Re-issuing for the same
// scope and order supersedes the prior token.
func (s *RedisActionTokens) Issue(ctx context.Context, claim ActionClaim) (string, error) {
	encoded, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}

	// Drop the previous token for this scope so stale renders cannot act.
	if err := s.Revoke(ctx, claim.Scope, claim.OrderID); err != nil {
		return "", err
	}

	token := uuid.NewString()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, actionKey(token), encoded, s.ttl)
	pipe.Set(ctx, actionIndexKey(claim.Scope, claim.OrderID), token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// Consume redeems a token exactly once. Absent tokens map to ExpiredAction.
func (s *RedisActionTokens) Consume(ctx context.Context, token string) (*ActionClaim, error) {
	raw, err := s.client.GetDel(ctx, actionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewExpiredAction()
	}
	if err != nil {
		return nil, err
	}

	var claim ActionClaim
	if err := json.Unmarshal([]byte(raw), &claim); err != nil {
		return nil, err
	}
	_ = s.client.Del(ctx, actionIndexKey(claim.Scope, claim.OrderID)).Err()
	return &claim, nil
}

// Revoke invalidates the outstanding token for a scope/order pair, if any.
func (s *RedisActionTokens) Revoke(ctx context.Context, scope ActionScope, orderID string) error {
	indexKey := actionIndexKey(scope, orderID)
	token, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.Del(ctx, actionKey(token), indexKey).Err()
}
