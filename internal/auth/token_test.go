package auth

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/shopfloor/internal/model"
)

func newSvc(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	s, err := NewTokenService([]byte("test-key"), ttl)
	require.NoError(t, err)
	return s
}

func TestIssueValidate_RoleOrdering(t *testing.T) {
	s := newSvc(t, time.Hour)
	sub := uuid.Must(uuid.NewV4())

	roles := []model.Role{model.RoleClient, model.RoleWorker, model.RoleAdmin}
	for _, have := range roles {
		tok, err := s.Issue(sub, have)
		require.NoError(t, err)
		for _, need := range roles {
			res := s.Validate(tok, need)
			if have >= need {
				require.Equal(t, Authorized, res.Outcome, "%s for %s", have, need)
				require.Equal(t, sub, res.Subject)
				require.Equal(t, have, res.Role)
			} else {
				require.Equal(t, Result{Outcome: Forbidden, Message: MsgForbidden}, res)
				require.Equal(t, 403, res.Code())
			}
		}
	}
}

func TestValidate_Rejections(t *testing.T) {
	s := newSvc(t, 0)

	res := s.Validate("", model.RoleClient)
	require.Equal(t, Result{Outcome: Unauthorized, Message: MsgNoToken}, res)
	require.Equal(t, 401, res.Code())

	res = s.Validate("not-a-token", model.RoleClient)
	require.Equal(t, MsgInvalidToken, res.Message)

	other, err := NewTokenService([]byte("other-key"), 0)
	require.NoError(t, err)
	tok, err := other.Issue(uuid.Must(uuid.NewV4()), model.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, Unauthorized, s.Validate(tok, model.RoleClient).Outcome)
}

func TestValidate_Expired(t *testing.T) {
	s := newSvc(t, time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }
	tok, err := s.Issue(uuid.Must(uuid.NewV4()), model.RoleWorker)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	res := s.Validate(tok, model.RoleClient)
	require.Equal(t, Unauthorized, res.Outcome)
	require.Equal(t, MsgInvalidToken, res.Message)
}

func TestValidate_NoExpiryWhenTTLZero(t *testing.T) {
	s := newSvc(t, 0)
	tok, err := s.Issue(uuid.Must(uuid.NewV4()), model.RoleClient)
	require.NoError(t, err)

	claims, err := s.parse(tok)
	require.NoError(t, err)
	require.Nil(t, claims.ExpiresAt)
	require.Equal(t, model.RoleClient, claims.Role)
}

func TestValidate_RejectsUnsignedAndBadClaims(t *testing.T) {
	s := newSvc(t, 0)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.Must(uuid.NewV4()).String()},
		Role:             model.RoleAdmin,
	})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.Equal(t, Unauthorized, s.Validate(raw, model.RoleClient).Outcome)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"},
		Role:             model.RoleAdmin,
	})
	raw, err = bad.SignedString([]byte("test-key"))
	require.NoError(t, err)
	require.Equal(t, Unauthorized, s.Validate(raw, model.RoleClient).Outcome)
}

func TestNewTokenService_Errors(t *testing.T) {
	_, err := NewTokenService(nil, 0)
	require.Error(t, err)

	s := newSvc(t, 0)
	_, err = s.Issue(uuid.Must(uuid.NewV4()), model.Role(0))
	require.Error(t, err)
}
