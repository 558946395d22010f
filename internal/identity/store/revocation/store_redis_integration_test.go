//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"findthem/internal/identity/store/revocation"
	"findthem/pkg/testutil/containers"
)

type RedisTRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisTRL
}

func TestRedisTRLSuite(t *testing.T) {
	suite.Run(t, new(RedisTRLSuite))
}

func (s *RedisTRLSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.trl = revocation.NewRedisTRL(s.redis.Client)
}

func (s *RedisTRLSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisTRLSuite) TestRevokeAndCheck() {
	ctx := context.Background()

	revoked, err := s.trl.IsRevoked(ctx, "jti-a")
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-a", time.Minute))
	revoked, err = s.trl.IsRevoked(ctx, "jti-a")
	s.Require().NoError(err)
	s.True(revoked)

	ttl, err := s.redis.Client.TTL(ctx, "trl:jti:jti-a").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisTRLSuite) TestExpiredEntryIsNotRevoked() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-b", 50*time.Millisecond))

	s.Eventually(func() bool {
		revoked, err := s.trl.IsRevoked(ctx, "jti-b")
		return err == nil && !revoked
	}, 2*time.Second, 20*time.Millisecond)
}
